// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream reveals a finished answer one unit at a time.
//
// Tokenize splits text into reveal units that never break a markdown link,
// and Streamer emits the growing prefix on a fixed tick until every unit has
// been shown or the run is cancelled.
//
// # Usage
//
//	s := stream.NewStreamer()
//	err := s.Start(stream.Tokenize(answer),
//	    func(prefix string) { render(prefix) },
//	    func() { settle() },
//	    30*time.Millisecond,
//	    func() bool { return stillWanted() },
//	)
//	...
//	s.Cancel()
//	<-s.Done()
package stream
