// Package siteinit implements a small extension layer for a document
// rendering host: it turns a noisy, possibly repeating "content loaded"
// notification into a single ready event per document, and injects per-host
// JavaScript customization scripts into each newly loaded document.
//
// # Overview
//
// The [Instance] owns a single [eventloop.Loop], and every piece of mutable
// state is touched only from that loop's goroutine:
//
//   - [Deduplicator] consumes raw load signals ([RawEvent]) and fires the
//     ready event at most once per [Document], invoking registered
//     [ReadyFunc] callbacks in registration order.
//   - [Providers] is a named set of [Provider] functions, each contributing
//     variables to the scope seen by injected scripts.
//   - [SiteIndex] is a snapshot of the available site scripts, rebuilt only on
//     request (see [SiteIndex.Rebuild] and [Instance.ReloadSites]).
//   - [SiteIndex.Matches] selects the scripts named after the document's host,
//     or after one of its parent domains.
//   - [Dispatcher] reads each matching script asynchronously, assembles the
//     [Scope] and hands it to the [Evaluator], which runs the script inside the
//     document's own goja runtime.
//
// Failures are always contained: a failing callback, provider or script is
// logged, and never prevents the remaining work from running.
//
// # Packages
//
// Site scripts, modules and top-level scripts are discovered from package
// directories, listed in the CONKEROR_PACKAGES environment variable (see
// [PackageRoots] and [Instance.Import]). Each package may contain:
//
//   - modules/: loaded via require, and added to the module search path
//   - *.js: loaded directly into the host runtime
//   - sites/: per-host scripts, named after the host, e.g. example.com.js
//
// Scripts loaded into the host runtime may call register_site_variables and
// add_dom_content_loaded_hook, to contribute providers and ready callbacks.
//
// # Usage
//
//	inst, err := siteinit.New(siteinit.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	inst.Import(siteinit.PackageRoots(os.LookupEnv, home))
//	inst.Index().Rebuild()
//
//	go inst.Run(ctx)
//	defer inst.Shutdown(context.Background())
//
//	page, _ := inst.NewPage("https://www.example.com/")
//	_ = inst.DeliverLoad(page, siteinit.RawEvent{Target: page.TopFrame().Location()})
//
// [eventloop.Loop]: github.com/joeycumines/go-eventloop
package siteinit
