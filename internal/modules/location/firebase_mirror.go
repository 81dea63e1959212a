// README: Mirrors live positions into Firebase Realtime Database so mobile
// clients can subscribe to /driver_locations/{id} and /passenger_locations/{id}.
package location

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"

	"ridecore/internal/types"
)

type FirebaseMirror struct {
	client *db.Client
}

// NewFirebaseMirror connects to the RTDB instance configured on app.
func NewFirebaseMirror(ctx context.Context, app *firebase.App) (*FirebaseMirror, error) {
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase RTDB client: %w", err)
	}
	return &FirebaseMirror{client: client}, nil
}

type mirrorEntry struct {
	Entry
	Status string `json:"status"`
}

func mirrorPath(kind UserType, id types.ID) string {
	return fmt.Sprintf("%s_locations/%s", kind, id)
}

func (m *FirebaseMirror) Publish(ctx context.Context, kind UserType, id types.ID, loc types.Location) error {
	status := "online"
	if kind == UserPassenger {
		status = "looking_for_ride"
	}
	if err := m.client.NewRef(mirrorPath(kind, id)).Set(ctx, mirrorEntry{Entry: entryFrom(loc), Status: status}); err != nil {
		return fmt.Errorf("mirroring %s %s location: %w", kind, id, err)
	}
	return nil
}
