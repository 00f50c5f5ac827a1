// Package slice models the cross-sectional image slice the contour engine works
// on: the path point that positions it in 3D, the orthonormal frame derived from
// that point, the scalar raster with its pixel<->world affine, and a sampler that
// produces slices for a path point.
//
// Slices are shared, read-only handles. A sampler that replaces a slice marks
// the old one invalid so holders can notice between events.
package slice
