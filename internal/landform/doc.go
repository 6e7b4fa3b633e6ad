// Package landform holds the classification-accuracy and ensemble-fusion
// core: scoring per-segment predictions against Schema D reference landforms,
// deriving per-class voting weights from those scores, and fusing the four
// base classifiers into the E5 ensemble label.
//
// The package operates on in-memory segment tables only. Raster preparation,
// spatial overlays, and persistence live with their collaborators
// (cmd/tools, storage/sqlite); weight matrices are frozen before voting
// begins, so an assessment stage must fully complete first.
package landform
