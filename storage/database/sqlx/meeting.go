package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core/meeting"
)

type rosterRow struct {
	MeetingID string `db:"meeting_id"`
	StudentID string `db:"student_id"`
	Status    string `db:"status"`
}

type meetingRepository struct {
	db *sqlx.DB
}

var _ meeting.Repository = (*meetingRepository)(nil)

func NewMeetingRepository(db *sql.DB) meeting.Repository {
	return &meetingRepository{db: sqlx.NewDb(db, "postgres")}
}

func (repo *meetingRepository) CreateMeeting(ctx context.Context, mtg meeting.Meeting) (meeting.Meeting, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO meeting (id, class_name, date, start_time, end_time, duration, delete_at, created_at, updated_at)
		VALUES (:id, :class_name, :date, :start_time, :end_time, :duration, :delete_at, :created_at, :updated_at)`,
		mtg)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "inserting meeting")
	}
	if err = saveRoster(ctx, tx, mtg); err != nil {
		return meeting.Meeting{}, err
	}
	if err = tx.Commit(); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "committing meeting")
	}
	return mtg, nil
}

func (repo *meetingRepository) GetMeetingByID(ctx context.Context, id string) (meeting.Meeting, error) {
	var mtg meeting.Meeting
	if err := repo.db.GetContext(ctx, &mtg, `SELECT * FROM meeting WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return meeting.Meeting{}, meeting.ErrNotFound
		}
		return meeting.Meeting{}, errors.Wrap(err, "getting meeting")
	}
	meetings, err := repo.loadRosters(ctx, []meeting.Meeting{mtg})
	if err != nil {
		return meeting.Meeting{}, err
	}
	return meetings[0], nil
}

func (repo *meetingRepository) QueryAllMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	return repo.queryMeetings(ctx, `SELECT * FROM meeting ORDER BY date, start_time`)
}

func (repo *meetingRepository) QueryMeetingsByStudent(ctx context.Context, studentID string) ([]meeting.Meeting, error) {
	return repo.queryMeetings(ctx, `
		SELECT m.* FROM meeting m
		JOIN meeting_student ms ON ms.meeting_id = m.id
		WHERE ms.student_id = $1
		ORDER BY m.date, m.start_time`, studentID)
}

func (repo *meetingRepository) queryMeetings(ctx context.Context, query string, args ...interface{}) ([]meeting.Meeting, error) {
	meetings := []meeting.Meeting{}
	if err := repo.db.SelectContext(ctx, &meetings, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	return repo.loadRosters(ctx, meetings)
}

func (repo *meetingRepository) UpdateMeeting(ctx context.Context, mtg meeting.Meeting) (meeting.Meeting, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, `
		UPDATE meeting
		SET class_name = :class_name, date = :date, start_time = :start_time, end_time = :end_time,
		    duration = :duration, delete_at = :delete_at, updated_at = :updated_at
		WHERE id = :id`, mtg)
	if err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "updating meeting")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return meeting.Meeting{}, meeting.ErrNotFound
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM meeting_student WHERE meeting_id = $1`, mtg.ID); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "clearing roster")
	}
	if err = saveRoster(ctx, tx, mtg); err != nil {
		return meeting.Meeting{}, err
	}
	if err = tx.Commit(); err != nil {
		return meeting.Meeting{}, errors.Wrap(err, "committing meeting")
	}
	return mtg, nil
}

func (repo *meetingRepository) DeleteMeetingsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`DELETE FROM meeting WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	_, err = repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	return errors.Wrap(err, "deleting meetings")
}

func (repo *meetingRepository) DeleteMeetingsDue(ctx context.Context, now time.Time) (int, error) {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM meeting WHERE delete_at <= $1`, now)
	if err != nil {
		return 0, errors.Wrap(err, "deleting due meetings")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "counting deleted meetings")
	}
	return int(n), nil
}

func saveRoster(ctx context.Context, tx *sqlx.Tx, mtg meeting.Meeting) error {
	for _, std := range mtg.Students {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meeting_student (meeting_id, student_id, status)
			VALUES ($1, $2, $3)`, mtg.ID, std.StudentID, std.Status)
		if err != nil {
			return errors.Wrap(err, "inserting roster entry")
		}
	}
	return nil
}

func (repo *meetingRepository) loadRosters(ctx context.Context, meetings []meeting.Meeting) ([]meeting.Meeting, error) {
	if len(meetings) == 0 {
		return meetings, nil
	}
	ids := make([]string, 0, len(meetings))
	for _, mtg := range meetings {
		ids = append(ids, mtg.ID)
	}
	query, args, err := sqlx.In(`SELECT * FROM meeting_student WHERE meeting_id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building roster query")
	}
	var rows []rosterRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying rosters")
	}

	byMeeting := make(map[string][]meeting.Student, len(meetings))
	for _, r := range rows {
		byMeeting[r.MeetingID] = append(byMeeting[r.MeetingID], meeting.Student{
			StudentID: r.StudentID,
			Status:    r.Status,
		})
	}
	for i := range meetings {
		meetings[i].Students = byMeeting[meetings[i].ID]
	}
	return meetings, nil
}
