/*
Package domain contains the core models of the chatflow engine.

It defines the conversation graph (Flow, Node, Option, Edge), the compiled node
behaviours the executor works with, the caller-held Cursor and the values a turn
produces (Payload and Directive). The package is pure: no I/O, no persistence.

# Key Entities

  - Flow: one complete conversation definition, persisted exactly as the admin console authors it.
  - Node: a conversational state. Its open wire record compiles into a closed Behavior.
  - Edge: a directed transition, optionally tagged with the option that triggers it.
  - Cursor: the position of one visitor session (flow id + node id).
  - Directive: the effect a terminal or message node asks the presentation channel to perform.
*/
package domain
