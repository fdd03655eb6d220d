/*
Package ports defines the driven ports (interfaces) of the flow engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends and flow sources.

# Key Interfaces

  - FlowRepository: persists flow definitions and the single active-flow pointer.
  - FlowSource: reads flow definitions from authoring formats (flow files, markdown directories).
  - Executor: the stateless state machine consumed by the presentation channels.
  - ActionDispatcher: turns action-bearing nodes into directives.
  - DistributedLocker: serializes admin writes across replicas.
*/
package ports
