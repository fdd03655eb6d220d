/*
Package dsl provides a Go DSL for programmatically constructing conversation flows.

It allows developers to define flows using a type-safe, fluent builder instead of
hand-writing JSON or YAML. This is particularly useful for unit tests and for
generating flows from other data.

Example usage:

	b := dsl.New("plant-shop").Name("Plant shop")

	b.Add("menu").
		Text("What would you like to do?").
		Entry().
		Via("o-care", "Care tips", "care").
		Option("o-bye", "Nothing, thanks", "bye")

	b.Add("care").
		Message("Water succulents every two weeks.").
		Option("o-back", "Back", "menu")

	b.Add("bye").End("Happy planting!")

	flow := b.Build()
*/
package dsl
