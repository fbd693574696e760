package index

// Index answers kNN queries over (id, embedding) pairs.
type Index interface {
	// Build replaces the indexed content. ids and vectors are parallel and
	// every vector has the same dimension.
	Build(ids []string, vectors [][]float32) error

	// Query returns up to k ids and their scores, best first. Higher scores
	// mean more similar. k <= 0 returns every match.
	Query(query []float32, k int) (ids []string, scores []float64, err error)

	// Len returns the number of indexed vectors.
	Len() int

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}
