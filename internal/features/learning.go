package features

import (
	"fmt"
	"sync"

	"freshershub/internal/bus"
	"freshershub/pkg/logger"
	"freshershub/pkg/types"
)

// Learning reports lesson progress and tracks course activity
type Learning struct {
	adapter

	mu           sync.RWMutex
	progress     map[string]map[string]float64 // courseID -> lessonID -> percent, local user only
	enrollments  map[string]int
	achievements []types.GoalAchievement
}

func NewLearning(t Transport, log logger.Logger) *Learning {
	l := &Learning{
		adapter:     newAdapter(t, log),
		progress:    make(map[string]map[string]float64),
		enrollments: make(map[string]int),
	}
	b := t.Bus()
	l.track(
		bus.Subscribe(b, types.EventProgressUpdate, l.onProgress),
		bus.Subscribe(b, types.EventNewEnrollment, func(e *types.NewEnrollment) {
			l.mu.Lock()
			l.enrollments[e.CourseID]++
			l.mu.Unlock()
		}),
		bus.Subscribe(b, types.EventGoalAchievement, func(g *types.GoalAchievement) {
			l.mu.Lock()
			l.achievements = append(l.achievements, *g)
			l.mu.Unlock()
		}),
	)
	return l
}

// WatchCourse joins the course room
func (l *Learning) WatchCourse(courseID string) {
	if courseID != "" {
		l.t.Join(types.CourseRoomID(courseID), types.RoomTypeCourse)
	}
}

func (l *Learning) UnwatchCourse(courseID string) {
	if courseID != "" {
		l.t.Leave(types.CourseRoomID(courseID))
	}
}

// UpdateProgress reports progress (0-100) on a lesson
func (l *Learning) UpdateProgress(courseID, lessonID string, progress float64) error {
	p := &types.ProgressUpdatePayload{CourseID: courseID, LessonID: lessonID, Progress: progress}
	if err := types.Validate(p); err != nil {
		return fmt.Errorf("progress update: %w", err)
	}
	l.t.SendEvent(types.EventLearningProgressUpdate, p, types.CourseRoomID(courseID))
	return nil
}

// Progress returns the last confirmed progress for a lesson
func (l *Learning) Progress(courseID, lessonID string) (float64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.progress[courseID][lessonID]
	return v, ok
}

func (l *Learning) Enrollments(courseID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.enrollments[courseID]
}

func (l *Learning) Achievements() []types.GoalAchievement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]types.GoalAchievement(nil), l.achievements...)
}

// onProgress records updates for the local user; classmates' updates in
// the course room are ignored here
func (l *Learning) onProgress(u *types.ProgressUpdate) {
	me := l.t.Identity()
	if me == nil || (u.UserID != "" && u.UserID != me.ID) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.progress[u.CourseID] == nil {
		l.progress[u.CourseID] = make(map[string]float64)
	}
	l.progress[u.CourseID][u.LessonID] = u.Progress
}
