package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/tutorloop-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if err := EnsureLedgerGuards(db); err != nil {
		return err
	}
	return EnsureJobIndexes(db)
}

// EnsureLedgerGuards makes review_event append-only at the database level.
func EnsureLedgerGuards(db *gorm.DB) error {
	switch db.Dialector.Name() {
	case DriverPostgres:
		if err := db.Exec(`
			CREATE OR REPLACE FUNCTION review_event_append_only() RETURNS trigger AS $$
			BEGIN
				RAISE EXCEPTION 'review_event is append-only';
			END;
			$$ LANGUAGE plpgsql;
		`).Error; err != nil {
			return fmt.Errorf("create review_event_append_only: %w", err)
		}
		if err := db.Exec(`DROP TRIGGER IF EXISTS trg_review_event_append_only ON review_event;`).Error; err != nil {
			return fmt.Errorf("drop trg_review_event_append_only: %w", err)
		}
		if err := db.Exec(`
			CREATE TRIGGER trg_review_event_append_only
			BEFORE UPDATE OR DELETE ON review_event
			FOR EACH ROW EXECUTE FUNCTION review_event_append_only();
		`).Error; err != nil {
			return fmt.Errorf("create trg_review_event_append_only: %w", err)
		}
	case DriverSQLite:
		for _, op := range []string{"UPDATE", "DELETE"} {
			if err := db.Exec(fmt.Sprintf(`
				CREATE TRIGGER IF NOT EXISTS trg_review_event_no_%[1]s
				BEFORE %[1]s ON review_event
				BEGIN
					SELECT RAISE(ABORT, 'review_event is append-only');
				END;
			`, op)).Error; err != nil {
				return fmt.Errorf("create review_event %s guard: %w", op, err)
			}
		}
	}
	return nil
}

func EnsureJobIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != DriverPostgres {
		return nil
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_job_run_pending
		ON job_run (created_at)
		WHERE status = 'PENDING';
	`).Error; err != nil {
		return fmt.Errorf("create idx_job_run_pending: %w", err)
	}
	return nil
}
