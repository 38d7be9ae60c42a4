package uploads

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/letsbefriends/platform/internal/errors"
	"github.com/letsbefriends/platform/pkg/logger"
)

const (
	DefaultTTL      = 15 * time.Minute
	DefaultMaxBytes = 10 << 20
)

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Config configures upload URL generation.
type Config struct {
	BaseURL  string
	Secret   string
	TTL      time.Duration
	MaxBytes int64
}

// UploadURL is a pre-signed target for a single object upload.
type UploadURL struct {
	Key         string    `json:"key"`
	UploadURL   string    `json:"upload_url"`
	PublicURL   string    `json:"public_url"`
	Method      string    `json:"method"`
	ContentType string    `json:"content_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service issues signed upload URLs. Storage itself happens elsewhere.
type Service struct {
	baseURL  string
	ttl      time.Duration
	maxBytes int64
	signer   *Signer
	log      *logger.Logger
	now      func() time.Time
}

// New constructs an upload service.
func New(cfg Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewDefault("uploads")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if _, err := url.Parse(base); err != nil || base == "" {
		return nil, fmt.Errorf("invalid uploads base url %q", cfg.BaseURL)
	}
	signer, err := NewSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Service{
		baseURL:  base,
		ttl:      cfg.TTL,
		maxBytes: cfg.MaxBytes,
		signer:   signer,
		log:      log,
		now:      time.Now,
	}, nil
}

// GenerateUploadURL returns a signed URL the user can PUT one image to.
func (s *Service) GenerateUploadURL(userID, contentType string, size int64) (UploadURL, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	ext, ok := extensions[contentType]
	if !ok {
		return UploadURL{}, apperrors.Validation("content type must be one of image/jpeg, image/png, image/webp, image/gif")
	}
	if size <= 0 {
		return UploadURL{}, apperrors.Validation("size must be positive")
	}
	if size > s.maxBytes {
		return UploadURL{}, apperrors.Validation(fmt.Sprintf("file exceeds the %d byte limit", s.maxBytes)).
			WithDetails("max_bytes", s.maxBytes)
	}

	key := fmt.Sprintf("uploads/%s/%s.%s", userID, uuid.NewString(), ext)
	expiresAt := s.now().UTC().Add(s.ttl).Truncate(time.Second)
	expires := expiresAt.Unix()

	q := url.Values{}
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("content_type", contentType)
	q.Set("sig", s.signer.Sign(key, expires, contentType))

	s.log.WithField("user_id", userID).WithField("key", key).Info("upload url issued")
	return UploadURL{
		Key:         key,
		UploadURL:   s.baseURL + "/" + key + "?" + q.Encode(),
		PublicURL:   s.PublicURL(key),
		Method:      "PUT",
		ContentType: contentType,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks a signature presented by the storage front end.
func (s *Service) Verify(key string, expires int64, contentType, sig string) error {
	if s.now().Unix() > expires {
		return apperrors.Forbidden("upload url expired")
	}
	if !s.signer.Valid(key, expires, strings.ToLower(contentType), sig) {
		return apperrors.Forbidden("invalid upload signature")
	}
	return nil
}

// PublicURL returns the read URL for an uploaded object.
func (s *Service) PublicURL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}
