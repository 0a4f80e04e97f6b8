package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/tts-gateway/internal/core"
)

// NatsObjectStore implements core.ArtifactStore on a NATS JetStream object
// store bucket, for deployments that keep generated audio in the cluster
// instead of on a local disk. JetStream publishes an object only once the
// full payload is stored, which gives the same no-partial-artifact
// guarantee the directory store gets from atomic rename.
type NatsObjectStore struct {
	bucket string
	store  nats.ObjectStore
}

// NewNatsObjectStore creates the bucket if absent, or binds to it when it
// already exists, and returns a store backed by it.
func NewNatsObjectStore(
	jetstreamContext nats.JetStreamContext,
	bucketName string,
) (*NatsObjectStore, error) {
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Audio artifacts for the %s bucket.", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to existing object store bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsObjectStore{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Put stores data under a freshly generated identifier, using the same
// naming scheme as the directory store.
func (n *NatsObjectStore) Put(
	_ context.Context,
	data []byte,
	suggestedName string,
) (core.ArtifactRef, error) {
	name := uuid.NewString() + defaultExtension

	if suggestedName != "" {
		validationErr := ValidateName(suggestedName)
		if validationErr != nil {
			return core.ArtifactRef{}, fmt.Errorf("%w: %w", core.ErrStorage, validationErr)
		}

		name = uuid.NewString() + "_" + SanitizeName(suggestedName)
	}

	reader := bytes.NewReader(data)

	_, putErr := n.store.Put(&nats.ObjectMeta{
		Name:        name,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, reader)
	if putErr != nil {
		return core.ArtifactRef{}, fmt.Errorf("%w: failed to put object '%s' to bucket '%s': %w",
			core.ErrStorage, name, n.bucket, putErr)
	}

	return core.ArtifactRef{ID: name, Size: int64(len(data))}, nil
}

// Get returns the full contents of the artifact.
func (n *NatsObjectStore) Get(_ context.Context, id string) ([]byte, error) {
	obj, getErr := n.store.Get(id)
	if getErr != nil {
		return nil, mapNatsError(id, n.bucket, getErr)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("%w: failed to read object '%s': %w", core.ErrStorage, id, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("%w: failed to close object '%s': %w", core.ErrStorage, id, closeErr)
	}

	return data, nil
}

// Open returns a reader over the artifact.
func (n *NatsObjectStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	obj, getErr := n.store.Get(id)
	if getErr != nil {
		return nil, mapNatsError(id, n.bucket, getErr)
	}

	return obj, nil
}

// List enumerates artifacts whose names carry one of the given extensions.
// An empty bucket lists as zero artifacts, not as an error.
func (n *NatsObjectStore) List(
	_ context.Context,
	extensions []string,
) ([]core.ArtifactRef, error) {
	infos, listErr := n.store.List()
	if listErr != nil {
		if errors.Is(listErr, nats.ErrNoObjectsFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%w: failed to list bucket '%s': %w",
			core.ErrStorage, n.bucket, listErr)
	}

	refs := make([]core.ArtifactRef, 0, len(infos))

	for _, info := range infos {
		if info.Deleted || !matchesExtension(info.Name, extensions) {
			continue
		}

		refs = append(refs, core.ArtifactRef{
			ID:   info.Name,
			Size: int64(info.Size),
		})
	}

	return refs, nil
}

func mapNatsError(id, bucket string, err error) error {
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("%w: %q", core.ErrNotFound, id)
	}

	return fmt.Errorf("%w: failed to get object '%s' from bucket '%s': %w",
		core.ErrStorage, id, bucket, err)
}
