// Package numistr embeds the numismatic catalog query engine in a Go program.
//
// It runs the same guarded listing, facet, suggest and lookup operations as the
// HTTP API, directly against the catalog database:
//
//	client, _ := numistr.New(ctx,
//	    numistr.WithPostgres("postgres://numistr@localhost/numistr"),
//	    numistr.WithRedis("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	page, _ := client.List(ctx, numistr.Filters{Mint: "Rome", YearFrom: numistr.Year(-50)}, numistr.ListOptions{})
//	facets, _ := client.Facets(ctx, numistr.Filters{Region: "ionia", Authority: "Lysimachos"}, numistr.FacetOptions{})
//	v, _ := client.Variant(ctx, "ntr:var:00001234", numistr.VariantOptions{Images: true})
//
// Redis is optional; without it aggregate payloads are recomputed on every call.
package numistr
