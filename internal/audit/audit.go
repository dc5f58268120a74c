// README: Append-only audit log; write failures are logged and never propagated.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridepool/internal/types"
)

type Recorder struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewRecorder(db *pgxpool.Pool, log *slog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Record appends an audit entry. Errors are swallowed: auditing must not
// abort the operation being audited.
func (r *Recorder) Record(ctx context.Context, action string, actorID types.ID, details map[string]any) {
	if r == nil || r.db == nil {
		return
	}
	payload, err := json.Marshal(details)
	if err != nil {
		r.log.Error("audit marshal", "action", action, "err", err)
		return
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, details, created_at)
		VALUES ($1, $2, $3, NOW())`,
		string(actorID), action, payload,
	)
	if err != nil {
		r.log.Error("audit write", "action", action, "err", err)
	}
}
