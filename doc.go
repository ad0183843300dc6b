// Package randselect renders weighted-random content into cacheable pages.
//
// A page is rendered once and cached, but each view shows an independently drawn
// alternative. Rendering never picks a winner: it stores the normalized choice set
// in the artifact's metadata bag and leaves an inert placeholder token in the
// text. Every view, fresh render or cache hit, runs a substitution pass that
// replaces tokens with a draw from the matching set.
//
// Components:
//   - ChoiceSet: cumulative distribution over rendered fragments (float or integer weights).
//   - Metadata: artifact-scoped registry LocalID -> ChoiceSet plus the exact Randomized flag.
//   - Marker: registers a set and emits a placeholder token.
//   - Substitute / Engine.Resolve: bounded repeat-until-stable token resolution.
//   - coherency.Coordinator: keeps edge max-age and If-Modified-Since handling
//     consistent with the Randomized flag (read-repair of the fast validation cache).
//
// Token:
//
//	<span class="randselect" data-randselect-id="'\x7f<id>\x7f'"></span>
//
// Flow:
//
//	meta := &randselect.Metadata{}
//	tok  := eng.Choose(page, meta, []randselect.Option{{1, "A"}, {3, "B"}}) // render
//	art  := randselect.Artifact{Text: "x " + tok, Meta: *meta}            // cache this
//	res  := eng.Resolve(&art, nil)                                        // every view
package randselect
