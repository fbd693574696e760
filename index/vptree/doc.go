// Package vptree is an exact cosine kNN index backed by a vantage-point
// tree. Vectors are normalized so that Euclidean distance, a true metric,
// orders neighbors exactly as cosine similarity does; the tree prunes with
// the triangle inequality on that distance.
package vptree
