// Command stepwise runs, documents, and builds images for pipeline
// recipes defined in the configuration tree format (§1-§9).
package main

func main() {
	Execute()
}
