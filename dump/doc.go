// Package dump defines the stream format used to ship snapshot and delta
// entries between a store and its replicas, over HTTP or as files.
//
// A dump starts with an uncompressed header: the magic "DSD1", a
// compression byte and the byte width of the embedding dtype. The body,
// compressed as announced, is a sequence of frames
//
//	flags byte | uvarint id length | id | [uvarint embedding length | embedding] | [int64 unix nanos]
//
// terminated by a frame whose flags byte is flagEnd. A body that ends
// without the terminator is reported as truncated.
package dump
