package feed

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/fusshn/booking-notifier/internal/booking"
)

// FirestoreSource streams document changes from one Firestore collection.
type FirestoreSource struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreSource creates a Source over the named collection.
func NewFirestoreSource(client *firestore.Client, collection string) *FirestoreSource {
	return &FirestoreSource{client: client, collection: collection}
}

// Listen opens a snapshot stream and delivers each snapshot's changes as
// one batch, preserving the store's emitted order. It returns when the
// stream fails or ctx is canceled.
func (s *FirestoreSource) Listen(ctx context.Context, handler BatchHandler) error {
	it := s.client.Collection(s.collection).Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			return fmt.Errorf("change feed for collection %q: %w", s.collection, err)
		}

		events := make([]booking.ChangeEvent, 0, len(snap.Changes))
		for _, change := range snap.Changes {
			events = append(events, booking.ChangeEvent{
				Kind:       changeKind(change.Kind),
				DocumentID: change.Doc.Ref.ID,
				Payload:    change.Doc.Data(),
			})
		}
		if len(events) == 0 {
			continue
		}
		handler(ctx, events)
	}
}

func changeKind(k firestore.DocumentChangeKind) booking.ChangeKind {
	switch k {
	case firestore.DocumentAdded:
		return booking.KindAdded
	case firestore.DocumentModified:
		return booking.KindModified
	default:
		return booking.KindRemoved
	}
}
