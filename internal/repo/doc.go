// Package repo manages the documents a process has open.
//
// A Repo hands out one Handle per document. The Handle owns the
// document.Document and serialises access to it through WithDocument; every
// call that moves the document's heads broadcasts a ChangeEvent to the
// handle's subscribers and to the repo's listeners. The repo persists new
// changes to its store and can fetch documents it does not have from
// registered finders, such as connected peers.
//
//	r := repo.New(repo.WithStore(st), repo.WithLogger(logger))
//	h, _ := r.CreateText(ctx, "content", "# Untitled")
//	fmt.Println(h.URL()) // glyph:6f1c...
//
//	for ev := range h.Changes(ctx) {
//	    // ev.Heads is the version after the change
//	}
package repo
