package meetings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/database"
)

const meetingColumns = `id, event_id, committee_id, title, description, scheduled_at, location, meeting_type,
	qr_code, qr_expires_at, status, created_by, created_at, updated_at`

// Repository handles meetings, invitations and attendance.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanMeeting(row pgx.Row) (*models.Meeting, error) {
	var m models.Meeting
	var meetingType, status string
	if err := row.Scan(&m.ID, &m.EventID, &m.CommitteeID, &m.Title, &m.Description, &m.ScheduledAt, &m.Location,
		&meetingType, &m.QRCode, &m.QRExpiresAt, &status, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	m.MeetingType = models.MeetingType(meetingType)
	m.Status = models.MeetingStatus(status)
	return &m, nil
}

// CreateWithInvitations inserts the meeting and one pending invitation per invitee in one transaction.
func (r *Repository) CreateWithInvitations(ctx context.Context, m *models.Meeting, invitees []uuid.UUID) error {
	return database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		const q = `INSERT INTO meetings (event_id, committee_id, title, description, scheduled_at, location, meeting_type, status, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRow(ctx, q, m.EventID, m.CommitteeID, m.Title, m.Description, m.ScheduledAt, m.Location,
			string(m.MeetingType), string(m.Status), m.CreatedBy).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return fmt.Errorf("insert meeting: %w", err)
		}
		if len(invitees) == 0 {
			return nil
		}
		batch := &pgx.Batch{}
		for _, uid := range invitees {
			batch.Queue(`INSERT INTO meeting_invitations (meeting_id, user_id) VALUES ($1, $2)
				ON CONFLICT ON CONSTRAINT meeting_invitations_meeting_user_key DO NOTHING`, m.ID, uid)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert invitations: %w", err)
		}
		return nil
	})
}

// GetByID returns a meeting by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	return scanMeeting(r.pool.QueryRow(ctx, q, id))
}

// GetByQRCode returns the meeting holding a check-in token.
func (r *Repository) GetByQRCode(ctx context.Context, code string) (*models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE qr_code = $1`
	return scanMeeting(r.pool.QueryRow(ctx, q, code))
}

// ListByEvent returns an event's meetings in schedule order.
func (r *Repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Meeting, error) {
	q := `SELECT ` + meetingColumns + ` FROM meetings WHERE event_id = $1 ORDER BY scheduled_at`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Cancel moves a scheduled meeting to cancelled and clears its QR code.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE meetings SET status = 'cancelled', qr_code = NULL, qr_expires_at = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotScheduled
	}
	return nil
}

// SetQRCode stores a new check-in token, replacing any previous one.
func (r *Repository) SetQRCode(ctx context.Context, id uuid.UUID, code string, expiresAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE meetings SET qr_code = $2, qr_expires_at = $3, updated_at = NOW() WHERE id = $1`, id, code, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RecordAttendance inserts an attendance row. recorded is false when the user was already checked in.
func (r *Repository) RecordAttendance(ctx context.Context, meetingID, userID uuid.UUID, via models.CheckInMethod, at time.Time) (*models.MeetingAttendance, bool, error) {
	const insert = `INSERT INTO meeting_attendances (meeting_id, user_id, checked_in_via, checked_in_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT meeting_attendances_meeting_user_key DO NOTHING
		RETURNING id, meeting_id, user_id, checked_in_via, checked_in_at`
	a, err := scanAttendance(r.pool.QueryRow(ctx, insert, meetingID, userID, string(via), at))
	if err == nil {
		return a, true, nil
	}
	if !database.IsNoRows(err) {
		return nil, false, fmt.Errorf("insert attendance: %w", err)
	}
	const existing = `SELECT id, meeting_id, user_id, checked_in_via, checked_in_at
		FROM meeting_attendances WHERE meeting_id = $1 AND user_id = $2`
	a, err = scanAttendance(r.pool.QueryRow(ctx, existing, meetingID, userID))
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

func scanAttendance(row pgx.Row) (*models.MeetingAttendance, error) {
	var a models.MeetingAttendance
	var via string
	if err := row.Scan(&a.ID, &a.MeetingID, &a.UserID, &via, &a.CheckedInAt); err != nil {
		return nil, err
	}
	a.CheckedInVia = models.CheckInMethod(via)
	return &a, nil
}

// ListAttendance returns a meeting's attendance with names.
func (r *Repository) ListAttendance(ctx context.Context, meetingID uuid.UUID) ([]models.MeetingAttendance, error) {
	const q = `SELECT a.id, a.meeting_id, a.user_id, a.checked_in_via, a.checked_in_at, u.full_name
		FROM meeting_attendances a JOIN users u ON u.id = a.user_id
		WHERE a.meeting_id = $1
		ORDER BY a.checked_in_at`
	rows, err := r.pool.Query(ctx, q, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.MeetingAttendance
	for rows.Next() {
		var a models.MeetingAttendance
		var via string
		if err := rows.Scan(&a.ID, &a.MeetingID, &a.UserID, &via, &a.CheckedInAt, &a.FullName); err != nil {
			return nil, err
		}
		a.CheckedInVia = models.CheckInMethod(via)
		list = append(list, a)
	}
	return list, rows.Err()
}

// RespondInvitation records the invitee's answer.
func (r *Repository) RespondInvitation(ctx context.Context, meetingID, userID uuid.UUID, status models.InvitationStatus, at time.Time) (*models.MeetingInvitation, error) {
	const q = `UPDATE meeting_invitations SET status = $3, responded_at = $4
		WHERE meeting_id = $1 AND user_id = $2
		RETURNING id, meeting_id, user_id, status, responded_at, created_at`
	var inv models.MeetingInvitation
	var st string
	err := r.pool.QueryRow(ctx, q, meetingID, userID, string(status), at).
		Scan(&inv.ID, &inv.MeetingID, &inv.UserID, &st, &inv.RespondedAt, &inv.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	inv.Status = models.InvitationStatus(st)
	return &inv, nil
}

// InviteeIDs returns the users invited to a meeting.
func (r *Repository) InviteeIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id FROM meeting_invitations WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}
