// Package chat implements rooms and the room registry.
//
// A Room is a bounded, lossy broadcast feed: posting never blocks, and a
// subscriber that falls behind is told how many entries it lost instead of
// stalling the poster. The Registry hands out one Room per name.
package chat
