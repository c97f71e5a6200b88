package commands

import (
	"context"
	"strings"

	"edziennik-backend/internal/scrapers/edziennik"

	"github.com/antzucaro/matchr"
)

var lessonFilter string

const lessonSimilarity = 0.85

// filterLessons keeps the lessons whose name resembles query, the single
// most similar lesson is kept when none is close enough.
func filterLessons(lessons []edziennik.Lesson, query string) []edziennik.Lesson {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return lessons
	}

	var matched []edziennik.Lesson
	best := -1
	bestSimilarity := 0.0
	for i, lesson := range lessons {
		name := strings.ToLower(lesson.Name)
		similarity := matchr.JaroWinkler(name, query, false)
		if strings.Contains(name, query) || similarity >= lessonSimilarity {
			matched = append(matched, lesson)
			continue
		}
		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = i
		}
	}
	if len(matched) == 0 && best >= 0 {
		matched = append(matched, lessons[best])
	}
	return matched
}

func filteredGrades(p *edziennik.Portal, ctx context.Context, id edziennik.Identity) ([]edziennik.Lesson, error) {
	lessons, err := p.Grades(ctx, id)
	if err != nil {
		return nil, err
	}
	return filterLessons(lessons, lessonFilter), nil
}
