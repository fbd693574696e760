// Package bruteforce is the baseline Index: it scores every vector by cosine
// similarity on each query.
package bruteforce
