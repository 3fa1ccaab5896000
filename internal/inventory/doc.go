// Package inventory computes the derived figures the lab dashboard shows
// next to supplies and equipment: stock health, weeks of cover, reorder
// suggestions and maintenance windows. It also parses quantities typed by
// users before they are turned into mutations.
//
// Everything here is pure arithmetic over doc.Entity values; nothing
// touches a store.
package inventory
