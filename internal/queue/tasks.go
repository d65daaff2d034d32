package queue

import "github.com/nikhilbhutani/aiservices/internal/training"

const TypeTrainingRun = "training:run"

const QueueTraining = "training"

// TrainingRunPayload is one batch of a training request.
type TrainingRunPayload struct {
	TaskID string       `json:"task_id"`
	JobID  string       `json:"job_id"`
	Job    training.Job `json:"job"`
}
