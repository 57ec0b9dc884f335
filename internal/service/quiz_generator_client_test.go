package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursevault-api/internal/models"
	appErrors "github.com/noah-isme/coursevault-api/pkg/errors"
)

var generatorCourse = &models.Course{ID: "c1", Title: "Intro to X", Level: "Beginner"}

func TestQuizGeneratorFiltersMalformedQuestions(t *testing.T) {
	var received generatorRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"questions":[
			{"question":"What is X?","options":["A thing"," Another thing "],"correctAnswer":"Another thing"},
			{"question":"","options":["a","b"],"correctAnswer":"a"},
			{"question":"One option?","options":["only"],"correctAnswer":"only"},
			{"question":"Answer missing?","options":["a","b"],"correctAnswer":"c"},
			{"question":"Is X useful?","options":["yes","no"],"correctAnswer":"yes"}
		]}`))
	}))
	defer server.Close()

	client := NewQuizGeneratorClient(QuizGeneratorConfig{URL: server.URL, APIKey: "secret"}, nil)
	lessons := []models.CourseLesson{{Title: "Basics", Content: "X is a thing."}}

	questions, err := client.Generate(context.Background(), generatorCourse, lessons, 10)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "Another thing", questions[0].CorrectAnswer)
	assert.Equal(t, []string{"A thing", "Another thing"}, questions[0].Options)

	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "c1", received.CourseID)
	assert.Equal(t, 10, received.Count)
	require.Len(t, received.Lessons, 1)
	assert.Equal(t, "Basics", received.Lessons[0].Title)
}

func TestQuizGeneratorAcceptsBareArrayAndTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"question":"Q1","options":["a","b"],"correctAnswer":"a"},
			{"question":"Q2","options":["a","b"],"correctAnswer":"b"},
			{"question":"Q3","options":["a","b"],"correctAnswer":"a"}
		]`))
	}))
	defer server.Close()

	client := NewQuizGeneratorClient(QuizGeneratorConfig{URL: server.URL}, nil)
	questions, err := client.Generate(context.Background(), generatorCourse, nil, 2)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "Q2", questions[1].Question)
}

func TestQuizGeneratorFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "upstream error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "malformed json", status: http.StatusOK, body: `questions: none`},
		{name: "nothing usable", status: http.StatusOK, body: `{"questions":[{"question":"Q","options":["a"],"correctAnswer":"a"}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewQuizGeneratorClient(QuizGeneratorConfig{URL: server.URL}, nil)
			_, err := client.Generate(context.Background(), generatorCourse, nil, 10)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrQuizGenerator.Code, appErr.Code)
			assert.Equal(t, http.StatusBadGateway, appErr.Status)
		})
	}
}

func TestQuizGeneratorNotConfigured(t *testing.T) {
	client := NewQuizGeneratorClient(QuizGeneratorConfig{}, nil)
	_, err := client.Generate(context.Background(), generatorCourse, nil, 10)
	assert.Equal(t, appErrors.ErrQuizGenerator.Code, appErrors.FromError(err).Code)
}
