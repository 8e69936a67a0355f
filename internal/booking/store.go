package booking

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/supabase-community/supabase-go"

	"github.com/chadiek/frontdesk/internal/intent"
)

// Store persists confirmed bookings.
type Store interface {
	Save(ctx context.Context, b *intent.Booking) error
}

// LogStore is the no-backend fallback: bookings are logged, not persisted.
type LogStore struct{}

func (LogStore) Save(_ context.Context, b *intent.Booking) error {
	log.Printf("booking (not persisted): %s <%s> %s at %s", b.Name, b.Email, b.Service, b.Datetime)
	return nil
}

type SupabaseConfig struct {
	URL            string
	ServiceRoleKey string
	Table          string
	Bucket         string
}

// SupabaseStore writes bookings to a Supabase table and call recordings
// to a storage bucket.
type SupabaseStore struct {
	client *supabase.Client
	table  string
	bucket string
}

func NewSupabaseStore(cfg SupabaseConfig) (*SupabaseStore, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	table := cfg.Table
	if table == "" {
		table = "appointments"
	}
	return &SupabaseStore{client: client, table: table, bucket: cfg.Bucket}, nil
}

// Save inserts the booking. Execute does not take a context, so the call
// runs in a goroutine and the caller's deadline bounds how long we wait.
func (s *SupabaseStore) Save(ctx context.Context, b *intent.Booking) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := s.client.From(s.table).Insert(b, false, "", "", "").Execute()
		done <- err
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("insert booking: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}
		return nil
	}
}

// UploadRecording stores a finished call recording under the given key.
func (s *SupabaseStore) UploadRecording(key string, data []byte) error {
	if s.bucket == "" {
		return fmt.Errorf("no recording bucket configured")
	}
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("upload recording: %w", err)
	}
	return nil
}
