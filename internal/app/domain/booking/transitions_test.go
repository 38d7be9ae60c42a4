package booking

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		role     Role
		want     bool
	}{
		{StatusPending, StatusAccepted, RoleProvider, true},
		{StatusPending, StatusAccepted, RoleClient, false},
		{StatusPending, StatusDeclined, RoleProvider, true},
		{StatusPending, StatusCancelled, RoleClient, true},
		{StatusPending, StatusPaid, RolePayment, false},
		{StatusAccepted, StatusPaid, RolePayment, true},
		{StatusAccepted, StatusPaid, RoleClient, false},
		{StatusAccepted, StatusCancelled, RoleSystem, true},
		{StatusPaid, StatusCompleted, RoleProvider, true},
		{StatusPaid, StatusCompleted, RoleClient, false},
		{StatusPaid, StatusCancelled, RoleClient, false},
		{StatusPaid, StatusCancelled, RoleProvider, true},
		{StatusCompleted, StatusCancelled, RoleProvider, false},
		{StatusDeclined, StatusAccepted, RoleProvider, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to, tc.role); got != tc.want {
			t.Errorf("%s -> %s by %s = %v, want %v", tc.from, tc.to, tc.role, got, tc.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusDeclined, StatusCompleted, StatusCancelled} {
		if !Terminal(s) {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusAccepted, StatusPaid} {
		if Terminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !Reachable(StatusAccepted, StatusPaid) || Reachable(StatusPending, StatusCompleted) {
		t.Error("unexpected reachability")
	}
}

func TestRoleOf(t *testing.T) {
	b := Booking{ClientID: "c", ProviderID: "p"}
	if b.RoleOf("c") != RoleClient || b.RoleOf("p") != RoleProvider || b.RoleOf("x") != "" {
		t.Fatal("unexpected roles")
	}
}
