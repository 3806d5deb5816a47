// Package usersink forwards state change activity to a go-users activity
// sink so state edits land in the same audit trail as user actions.
package usersink

import (
	"context"

	"github.com/goliatone/go-snapstate/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// ObjectType is recorded for every state change.
const ObjectType = "state"

// Hook writes one ActivityRecord per event to Sink.
type Hook struct {
	Sink usertypes.ActivitySink
}

var _ activity.Hook = Hook{}

func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	event = activity.Normalize(event)
	if !event.Valid() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, Record(event))
}

// Record maps an event onto a go-users record. The object id is the
// changed path; store and values travel in Data.
func Record(event activity.Event) usertypes.ActivityRecord {
	data := map[string]any{"path": event.Path}
	for key, value := range event.Metadata {
		data[key] = value
	}
	if event.Store != "" {
		data["store"] = event.Store
	}
	if event.Before != nil {
		data["old_value"] = event.Before
	}
	if event.After != nil {
		data["new_value"] = event.After
	}
	return usertypes.ActivityRecord{
		ActorID:    identifier(event.Actor.ActorID),
		UserID:     identifier(event.Actor.UserID),
		TenantID:   identifier(event.Actor.TenantID),
		Verb:       event.Verb,
		ObjectType: ObjectType,
		ObjectID:   event.Path,
		Channel:    event.Channel,
		Data:       data,
		OccurredAt: event.OccurredAt,
	}
}

// identifier parses id, mapping anything that is not a UUID to uuid.Nil.
func identifier(id string) uuid.UUID {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
