package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"consultchat/pkg/errors"
)

// watchQuery runs a realtime listener on q and hands every snapshot's full
// document set to fn. It returns nil once ctx is cancelled.
func watchQuery(ctx context.Context, q firestore.Query, what string, fn func([]*firestore.DocumentSnapshot) error) error {
	it := q.Snapshots(ctx)
	defer it.Stop()

	for {
		snap, err := it.Next()
		if err != nil {
			if ctx.Err() != nil || err == iterator.Done || status.Code(err) == codes.Canceled {
				return nil
			}
			return errors.Internal("Failed to watch "+what, err)
		}

		docs, err := snap.Documents.GetAll()
		if err != nil {
			return errors.Internal("Failed to read "+what+" snapshot", err)
		}

		if err := fn(docs); err != nil {
			return err
		}
	}
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func isAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
