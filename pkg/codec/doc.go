/*
Package codec provides the Link type — a typed pointer into a content-
addressed blob store — and the DAG-CBOR encode/decode helpers used to
serialize every typed block in JaxBucket (Node, Manifest, OpEntry,
PathOpLog). See spec.md §3.1, §4.3, §6.4.
*/
package codec
