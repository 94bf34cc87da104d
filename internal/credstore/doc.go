// Package credstore distributes the cluster join credential from the single
// coordinator that writes it to the workers that read it.
//
// Every Store guarantees atomic visibility: a reader observes either no value
// or a complete value, never a partial write.
package credstore
