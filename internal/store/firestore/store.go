package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/roach88/firedesk/internal/store"
)

// EmulatorHostEnv is read by the SDK when constructing a client.
const EmulatorHostEnv = "FIRESTORE_EMULATOR_HOST"

// Config selects a Firestore database.
type Config struct {
	ProjectID       string
	DatabaseID      string // "" means "(default)"
	EmulatorHost    string // host:port; "" means production
	CredentialsFile string
}

// Store is a store.Store over a Firestore client.
type Store struct {
	client *firestore.Client
}

var _ store.Store = (*Store)(nil)

// envMu serializes client construction while FIRESTORE_EMULATOR_HOST is
// temporarily set for one target.
var envMu sync.Mutex

// Open creates a client for cfg.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firestore: project id is required")
	}
	database := cfg.DatabaseID
	if database == "" {
		database = firestore.DefaultDatabaseID
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" && cfg.EmulatorHost == "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	envMu.Lock()
	defer envMu.Unlock()

	if cfg.EmulatorHost != "" {
		prev, had := os.LookupEnv(EmulatorHostEnv)
		if err := os.Setenv(EmulatorHostEnv, cfg.EmulatorHost); err != nil {
			return nil, fmt.Errorf("firestore: set emulator host: %w", err)
		}
		defer func() {
			if had {
				os.Setenv(EmulatorHostEnv, prev)
			} else {
				os.Unsetenv(EmulatorHostEnv)
			}
		}()
	}

	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, database, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: new client: %w", err)
	}
	return &Store{client: client}, nil
}

// Close releases the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// NewDocID returns a random id the SDK would assign to a new document.
func (s *Store) NewDocID(collectionPath string) string {
	return s.client.Collection(collectionPath).NewDoc().ID
}

// wrap converts an SDK error to a store.ProviderError.
func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	code := status.Code(err)
	switch code {
	case codes.NotFound:
		return store.NewProviderError(op, path, store.CodeNotFound, fmt.Errorf("%w: %w", store.ErrNotFound, err))
	case codes.AlreadyExists:
		return store.NewProviderError(op, path, store.CodeAlreadyExists, fmt.Errorf("%w: %w", store.ErrAlreadyExists, err))
	case codes.Unknown:
		if errors.Is(err, context.Canceled) {
			return store.NewProviderError(op, path, store.CodeCanceled, err)
		}
		return store.NewProviderError(op, path, store.CodeInternal, err)
	default:
		return store.NewProviderError(op, path, code.String(), err)
	}
}

func (s *Store) doc(op, path string) (*firestore.DocumentRef, error) {
	ref := s.client.Doc(path)
	if ref == nil {
		return nil, store.NewProviderError(op, path, store.CodeInvalid, fmt.Errorf("invalid document path"))
	}
	return ref, nil
}

func (s *Store) collection(op, path string) (*firestore.CollectionRef, error) {
	ref := s.client.Collection(path)
	if ref == nil {
		return nil, store.NewProviderError(op, path, store.CodeInvalid, fmt.Errorf("invalid collection path"))
	}
	return ref, nil
}
