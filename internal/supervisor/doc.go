// Package supervisor runs one crawl worker per configured site.
//
// Workers are independent: each gets its own adapter, frontier, sink handle
// and renderer from a Factory, and a failure to build or start one site's
// worker is recorded in the crawl report without stopping the others.
//
// Basic usage:
//
//	factory := supervisor.NewFactory(cfg, supervisor.WithFactoryLogger(logger))
//	defer factory.Close()
//
//	sup := supervisor.New(factory,
//		supervisor.WithConcurrency(cfg.Concurrency),
//		supervisor.WithLogger(logger),
//	)
//	report, err := sup.Run(ctx, sites)
package supervisor
