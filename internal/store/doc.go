// Package store holds the read-only object dataset served by avafields.
//
// The dataset is YAML keyed by resource (the plural schema name); each
// resource is a list of objects with a unique string "id":
//
//	dataElements:
//	  - id: fbfJHSPpUQD
//	    name: ANC 1st visit
//	    categoryCombo:
//	      id: bjDvmb4bfuf
//
// Objects decode to *fields.Object so members keep their authoring order
// when rendered.
package store
