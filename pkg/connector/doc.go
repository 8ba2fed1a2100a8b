// Package connector groups the dataset sources and record destinations.
//
// # Architecture Overview
//
//   - core: the Source and Destination interfaces, the shared Env handed
//     to source factories, and Dataset, which pairs fetch outcomes with
//     the readers for their cache files.
//
//   - sources: gudid, pmn (510(k)) and pma. Each registers itself with
//     the registry from an init function; importing sources pulls in all
//     three.
//
//   - destinations: mongodb for the load command, jsonl and csv for
//     exports.
//
//   - registry: maps source names to factories and lists them in load
//     order.
//
// # Example Usage
//
//	env := &core.Env{
//		Store:   cache.New("data"),
//		Client:  clients.NewHTTPClient(nil, logger),
//		Release: "20250301",
//	}
//
//	src, err := registry.CreateSource("pma", env)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	ds, err := src.Fetch(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	dest, err := mongodb.Connect(ctx, cfg.Mongo, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dest.Close(ctx)
//
//	n, err := dest.Write(ctx, src.Collection(), ds.Records())
package connector
