// Package forge builds a concurrent file-processing pipeline out of
// user-supplied plugins and runs it once or watches it forever.
//
// Quick start:
//
//	eng := forge.New(forge.WithConcurrency(4))
//	defer eng.Dispose(context.Background())
//
//	if err := eng.Use(mySourcePlugin, "source"); err != nil {
//	    log.Fatal(err)
//	}
//	summary, err := eng.Build(context.Background())
//
// An Engine is safe for concurrent use.
package forge
