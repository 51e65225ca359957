// Package extract turns a rendered page into catalog metadata.
//
// Generic strategies read Open Graph, Twitter card, meta description, <title>
// and JSON-LD. A site adapter chosen by the final host then refines the result.
// Scraper ties a render.Renderer to an Extractor and reports pages without a
// title as ErrTitleNotFound, the signal the bulk orchestrator treats as a block.
package extract
