// Command memctl exercises the memkit allocators and reports their accounting.
package main

func main() {
	execute()
}
