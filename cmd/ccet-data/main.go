// Command ccet-data loads CCET climate budget workbooks into the climate
// budget database.
package main

func main() {
	Execute()
}
