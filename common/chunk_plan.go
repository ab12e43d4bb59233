package common

// Plan describes how a file of a given size maps onto network blob sizes.
type Plan struct {
	ChunkSize   int64 // blob size each chunk is dispersed as, bytes
	TotalChunks int
	Chunked     bool
}

// PlanChunks picks the blob size for a file using the configured size
// buckets (bytes, ascending). A file that fits a bucket is stored as a
// single blob of the smallest bucket that holds it; anything larger is
// split into equal chunks of the largest bucket, last chunk short.
func PlanChunks(fileSize int64, buckets []int64) (Plan, error) {
	if fileSize <= 0 {
		return Plan{}, NewValidationError("fileSize", "must be positive")
	}
	if len(buckets) == 0 {
		return Plan{}, NewValidationError("buckets", "no blob size buckets configured")
	}

	for _, b := range buckets {
		if fileSize <= b {
			return Plan{ChunkSize: b, TotalChunks: 1, Chunked: false}, nil
		}
	}

	largest := buckets[len(buckets)-1]
	count := int((fileSize + largest - 1) / largest)
	if count < 1 {
		count = 1
	}
	return Plan{ChunkSize: largest, TotalChunks: count, Chunked: count > 1}, nil
}
