package inmemdb

import (
	"sync"

	"github.com/sathyagomani/academy/core/course"
	"github.com/sathyagomani/academy/core/meeting"
	"github.com/sathyagomani/academy/core/user"
)

type (
	DB struct {
		user    *userTable
		meeting *meetingTable
		course  *courseTable
		lesson  *lessonTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	meetingTable struct {
		sync.RWMutex
		table map[string]*meeting.Meeting
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	lessonTable struct {
		sync.RWMutex
		table map[string]*course.Lesson
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:    &userTable{table: make(map[string]*user.User)},
		meeting: &meetingTable{table: make(map[string]*meeting.Meeting)},
		course:  &courseTable{table: make(map[string]*course.Course)},
		lesson:  &lessonTable{table: make(map[string]*course.Lesson)},
	}
	return db, nil
}
