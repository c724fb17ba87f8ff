package inmemdb

import (
	"context"
	"sort"

	"github.com/sathyagomani/academy/core/course"
)

type courseRepository struct {
	courses *courseTable
	lessons *lessonTable
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{courses: db.course, lessons: db.lesson}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.courses.Lock()
	defer repo.courses.Unlock()

	cp := crs
	repo.courses.table[crs.ID] = &cp
	return crs, nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	if crs, ok := repo.courses.table[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	repo.courses.RLock()
	defer repo.courses.RUnlock()

	courses := make([]course.Course, 0, len(repo.courses.table))
	for _, crs := range repo.courses.table {
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.Before(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) DeleteCoursesByID(ctx context.Context, ids ...string) error {
	repo.courses.Lock()
	defer repo.courses.Unlock()
	repo.lessons.Lock()
	defer repo.lessons.Unlock()

	for _, id := range ids {
		delete(repo.courses.table, id)
		for lid, lsn := range repo.lessons.table {
			if lsn.CourseID == id {
				delete(repo.lessons.table, lid)
			}
		}
	}
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.lessons.Lock()
	defer repo.lessons.Unlock()

	cp := lsn
	repo.lessons.table[lsn.ID] = &cp
	return lsn, nil
}

func (repo *courseRepository) QueryLessonsByCourse(ctx context.Context, courseID string) ([]course.Lesson, error) {
	repo.lessons.RLock()
	defer repo.lessons.RUnlock()

	var lessons []course.Lesson
	for _, lsn := range repo.lessons.table {
		if lsn.CourseID == courseID {
			lessons = append(lessons, *lsn)
		}
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })
	return lessons, nil
}

func (repo *courseRepository) DeleteLessonsByID(ctx context.Context, ids ...string) error {
	repo.lessons.Lock()
	defer repo.lessons.Unlock()
	for _, id := range ids {
		delete(repo.lessons.table, id)
	}
	return nil
}
