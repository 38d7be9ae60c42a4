package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/letsbefriends/platform/internal/app/domain/booking"
	"github.com/letsbefriends/platform/internal/app/domain/follow"
	"github.com/letsbefriends/platform/internal/app/domain/offering"
	"github.com/letsbefriends/platform/internal/app/domain/post"
	"github.com/letsbefriends/platform/internal/app/domain/site"
	"github.com/letsbefriends/platform/internal/app/domain/user"
	"github.com/letsbefriends/platform/internal/platform/migrations"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrations.Apply(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := New(db)

	suffix := time.Now().Format("150405.000000")
	provider, err := store.CreateUser(ctx, user.User{ExternalID: "ext-p-" + suffix, Username: "prov" + suffix, Plan: "free"})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	client, err := store.CreateUser(ctx, user.User{ExternalID: "ext-c-" + suffix, Username: "cli" + suffix, Plan: "free"})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	if _, err := store.CreateFollow(ctx, follow.Follow{FollowerID: client.ID, FolloweeID: provider.ID}); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if got, _ := store.GetUser(ctx, provider.ID); got.FollowersCount != 1 {
		t.Fatalf("followers = %d", got.FollowersCount)
	}

	p, err := store.CreatePost(ctx, post.Post{AuthorID: provider.ID, Content: "hello"})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if liked, err := store.ToggleLike(ctx, p.ID, client.ID); err != nil || !liked {
		t.Fatalf("like: %v %v", liked, err)
	}

	off, err := store.CreateOffering(ctx, offering.Offering{ProviderID: provider.ID, Title: "Haircut", Price: 25000, Currency: "PHP", DurationMinutes: 30, Active: true})
	if err != nil {
		t.Fatalf("create offering: %v", err)
	}
	b, err := store.CreateBooking(ctx, booking.Booking{OfferingID: off.ID, ClientID: client.ID, ProviderID: provider.ID, ScheduledAt: time.Now().Add(time.Hour), Status: booking.StatusPending, PaymentStatus: booking.PaymentNone, Currency: "PHP"})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	b.Status = booking.StatusAccepted
	if _, err := store.UpdateBooking(ctx, b, booking.StatusPending); err != nil {
		t.Fatalf("accept booking: %v", err)
	}

	st, err := store.CreateSite(ctx, site.Site{OwnerID: provider.ID, Handle: "h" + suffix})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	first, err := store.CreatePage(ctx, site.Page{SiteID: st.ID, OwnerID: provider.ID, Title: "Home", Slug: "home"}, 2)
	if err != nil || !first.IsHomepage {
		t.Fatalf("create page: %+v %v", first, err)
	}
	second, err := store.CreatePage(ctx, site.Page{SiteID: st.ID, OwnerID: provider.ID, Title: "About", Slug: "about"}, 2)
	if err != nil {
		t.Fatalf("create second page: %v", err)
	}
	if err := store.DeletePage(ctx, provider.ID, first.ID); err != nil {
		t.Fatalf("delete page: %v", err)
	}
	pages, err := store.ListPages(ctx, provider.ID)
	if err != nil || len(pages) != 1 || pages[0].ID != second.ID || !pages[0].IsHomepage || pages[0].Order != 0 {
		t.Fatalf("unexpected pages after delete: %+v %v", pages, err)
	}
}
