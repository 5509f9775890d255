// Package firebase stores documents in the Firebase Realtime Database, one
// child per collection and one grandchild per document id.
package firebase

import (
	"context"
	"errors"

	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"sports-tips-subscription/internal/config"
)

// tree is the slice of the RTDB client the store needs. It keeps the store
// testable without a live database.
type tree interface {
	Get(ctx context.Context, path string, v any) error
	Delete(ctx context.Context, path string) error
	// QueryEqual reads the children of path whose child equals value.
	QueryEqual(ctx context.Context, path, child string, value any, v any) error
	// CreateIfAbsent writes v at path unless something is already there.
	CreateIfAbsent(ctx context.Context, path string, v any) error
	// UpdateIfPresent merges patch into the node at path and returns the
	// result; nil values remove children. Fails with errMissing when the
	// node does not exist.
	UpdateIfPresent(ctx context.Context, path string, patch map[string]any) (map[string]any, error)
}

var (
	errExists  = errors.New("node exists")
	errMissing = errors.New("node missing")
)

// mergePatch applies patch to cur in place.
func mergePatch(cur, patch map[string]any) map[string]any {
	for k, v := range patch {
		if v == nil {
			delete(cur, k)
			continue
		}
		cur[k] = v
	}
	return cur
}

// NewClient initialises the Firebase app and its Realtime Database client.
func NewClient(ctx context.Context, cfg config.FirebaseConfig) (*db.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := fb.NewApp(ctx, &fb.Config{DatabaseURL: cfg.DatabaseURL}, opts...)
	if err != nil {
		return nil, err
	}
	return app.Database(ctx)
}

type rtdb struct {
	cli *db.Client
}

func (r rtdb) Get(ctx context.Context, path string, v any) error {
	return r.cli.NewRef(path).Get(ctx, v)
}

func (r rtdb) Delete(ctx context.Context, path string) error {
	return r.cli.NewRef(path).Delete(ctx)
}

func (r rtdb) QueryEqual(ctx context.Context, path, child string, value any, v any) error {
	return r.cli.NewRef(path).OrderByChild(child).EqualTo(value).Get(ctx, v)
}

func (r rtdb) CreateIfAbsent(ctx context.Context, path string, v any) error {
	return r.cli.NewRef(path).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var cur any
		if err := node.Unmarshal(&cur); err != nil {
			return nil, err
		}
		if cur != nil {
			return nil, errExists
		}
		return v, nil
	})
}

func (r rtdb) UpdateIfPresent(ctx context.Context, path string, patch map[string]any) (map[string]any, error) {
	var merged map[string]any
	err := r.cli.NewRef(path).Transaction(ctx, func(node db.TransactionNode) (interface{}, error) {
		var cur map[string]any
		if err := node.Unmarshal(&cur); err != nil {
			return nil, err
		}
		if cur == nil {
			return nil, errMissing
		}
		merged = mergePatch(cur, patch)
		return merged, nil
	})
	if err != nil {
		return nil, err
	}
	return merged, nil
}
