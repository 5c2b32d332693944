// Package gpu provides host implementations of the collaborators consumed
// by videoout: a linear tile calculator, an image registry standing in for
// GPU memory, and a headless presenter, which counts frames rather than
// drawing them.
package gpu
