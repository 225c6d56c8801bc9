// Package wind turns raw apparent wind, boat speed and attitude samples into
// corrected true wind.
//
// A Session caches the latest inputs. Each apparent wind speed sample runs
// the correction chain in a fixed order:
//
//   - sensor misalignment
//   - mast rotation
//   - upwash
//   - mast heel
//   - mast movement
//   - leeway
//   - true wind, then height normalisation
//   - apparent wind back calculation and ground wind
//
// and publishes the smoothed results to a Sink. Internally all vectors are
// Cartesian (gonum r2.Vec) in m/s; angles are radians in (-π, π].
package wind
