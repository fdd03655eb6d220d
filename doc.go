/*
Package chatflow is a conversational flow engine for guided storefront chatbots.

A flow is a directed graph of nodes authored in a visual editor. Each node shows
text and a list of options; picking an option moves the visitor to the next node.
Action-bearing nodes hand the visitor off: to a WhatsApp chat, to a URL, or to the
end of the conversation. There is no language understanding: navigation is fully
deterministic.

# Architecture

  - pkg/domain: the flow graph model and the compiled node behaviours.
  - internal/validator: structural checks run before a flow can go live.
  - pkg/flowstore: flow persistence with a single active flow, on top of the
    repositories in pkg/adapters (memory, file, redis, sql).
  - internal/runtime: the stateless executor. Every call is a pure function of
    the flow, the cursor held by the caller and the selected option.
  - pkg/dispatch: turns action-bearing nodes into directives (deep links, URLs).

The Engine in this package ties them together for presentation channels. Sessions
are stateless on the server: the cursor travels as an opaque token that the widget
sends back with every choice.

# Usage

	store := flowstore.New(memory.NewStore())
	flow, _ := store.SaveFlow(ctx, myFlow)
	_ = store.SetActiveFlow(ctx, flow.ID)

	eng := chatflow.New(store, chatflow.WithCursorSecret(secret))

	session, err := eng.StartSession(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(session.Payload.Text)

	// Later, when the visitor picks an option:
	session, err = eng.Advance(ctx, session.Token, session.Payload.Options[0].ID)
	if session.Directive != nil && session.Directive.Type == domain.DirectiveWhatsApp {
		openBrowser(session.Directive.Link)
	}
*/
package chatflow
