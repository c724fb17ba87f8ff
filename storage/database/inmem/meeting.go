package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/sathyagomani/academy/core/meeting"
)

type meetingRepository struct {
	db *meetingTable
}

var _ meeting.Repository = (*meetingRepository)(nil)

func NewMeetingRepository(db *DB) meeting.Repository {
	return &meetingRepository{db: db.meeting}
}

func copyMeeting(mtg meeting.Meeting) meeting.Meeting {
	cp := mtg
	if mtg.Students != nil {
		cp.Students = make([]meeting.Student, len(mtg.Students))
		copy(cp.Students, mtg.Students)
	}
	return cp
}

func sortMeetings(meetings []meeting.Meeting) {
	sort.Slice(meetings, func(i, j int) bool {
		if !meetings[i].Date.Equal(meetings[j].Date) {
			return meetings[i].Date.Before(meetings[j].Date)
		}
		// canonical HH:MM sorts lexicographically
		return meetings[i].StartTime < meetings[j].StartTime
	})
}

func (repo *meetingRepository) CreateMeeting(ctx context.Context, mtg meeting.Meeting) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cp := copyMeeting(mtg)
	repo.db.table[mtg.ID] = &cp
	return mtg, nil
}

func (repo *meetingRepository) GetMeetingByID(ctx context.Context, id string) (meeting.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if mtg, ok := repo.db.table[id]; ok {
		return copyMeeting(*mtg), nil
	}
	return meeting.Meeting{}, meeting.ErrNotFound
}

func (repo *meetingRepository) QueryAllMeetings(ctx context.Context) ([]meeting.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	meetings := make([]meeting.Meeting, 0, len(repo.db.table))
	for _, mtg := range repo.db.table {
		meetings = append(meetings, copyMeeting(*mtg))
	}
	sortMeetings(meetings)
	return meetings, nil
}

func (repo *meetingRepository) QueryMeetingsByStudent(ctx context.Context, studentID string) ([]meeting.Meeting, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var meetings []meeting.Meeting
	for _, mtg := range repo.db.table {
		if mtg.HasStudent(studentID) {
			meetings = append(meetings, copyMeeting(*mtg))
		}
	}
	sortMeetings(meetings)
	return meetings, nil
}

func (repo *meetingRepository) UpdateMeeting(ctx context.Context, mtg meeting.Meeting) (meeting.Meeting, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[mtg.ID]; !ok {
		return meeting.Meeting{}, meeting.ErrNotFound
	}
	cp := copyMeeting(mtg)
	repo.db.table[mtg.ID] = &cp
	return mtg, nil
}

func (repo *meetingRepository) DeleteMeetingsByID(ctx context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *meetingRepository) DeleteMeetingsDue(ctx context.Context, now time.Time) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var count int
	for id, mtg := range repo.db.table {
		if !mtg.DeleteAt.After(now) {
			delete(repo.db.table, id)
			count++
		}
	}
	return count, nil
}
