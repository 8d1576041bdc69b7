// Package audit keeps a searchable trail of authentication outcomes in
// Elasticsearch. The recorder is optional: a nil *Recorder is valid and
// records nothing, and indexing failures never propagate to the auth flow.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
)

type Entry struct {
	Event  string    `json:"event"`
	UserID uint      `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

type Recorder struct {
	ES    *elasticsearch.Client
	Index string
}

func NewRecorder(url, user, password, index string) (*Recorder, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Recorder{ES: client, Index: index}, nil
}

func (r *Recorder) Record(ctx context.Context, entry Entry) error {
	if r == nil {
		return nil
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("audit: marshal entry: %w", err)
	}

	res, err := r.ES.Index(r.Index, bytes.NewReader(body), r.ES.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("audit: index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("audit: index: %s", res.Status())
	}
	return nil
}
