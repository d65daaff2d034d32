package training

import "github.com/google/uuid"

// Split divides job into consecutive batches of at most size files. Every
// file of batch k carries its batch's job id, job_index k (1-based) and
// total_jobs. A job with no files yields no batches.
func Split(job Job, size int) []Job {
	if size <= 0 {
		size = len(job.Files)
	}
	if len(job.Files) == 0 {
		return nil
	}

	total := (len(job.Files) + size - 1) / size
	batches := make([]Job, 0, total)
	for k := 0; k < total; k++ {
		files := append([]FileJob(nil), job.Files[k*size:min((k+1)*size, len(job.Files))]...)

		index := k + 1
		g := Grouping{JobID: Label(uuid.NewString()), JobIndex: &index, TotalJobs: &total}
		for i := range files {
			files[i].Grouping = g
		}

		batch := job
		batch.Files = files
		batches = append(batches, batch)
	}
	return batches
}
