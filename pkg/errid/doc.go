// Package errid assigns stable numeric identifiers to failure sites.
//
// A failure site is identified by a triple: the base name of the source file,
// the name of the function, and the line offset of the site measured from the
// start of that function. The registry maps each distinct triple to a numeric
// id in the range [1000000, 9999999]. The mapping is deterministic: the same
// triple always yields the same id within a process, and two distinct triples
// never share an id.
//
// The id is derived by seeding a pseudo-random generator with a BLAKE2s hash
// of the file and function names and offsetting the draw by the line offset.
// Because the line offset only shifts the draw, moving a failure site a few
// lines within the same function changes only the low-order digits of its id,
// which keeps ids recognizable across minor refactors.
//
// The registry is process-wide and append-only: it holds one entry per
// distinct failure site that has been observed, lives for the duration of the
// process and has no reset API. Since the number of failure sites is bounded
// by the number of distinct call sites in the program, so is the registry.
package errid
