// Package engine reconciles e-mailed identifiers with the document store.
//
// Subscribe classifies each token, finds or creates the document it names
// and links the sender to it. Unsubscribe removes links and drops senders
// left with none. Forget drops a sender outright. Every call runs its store
// mutations in a single transaction, and a token that cannot be handled is
// skipped without failing the others.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/communalgrowth/docsub/internal/domain"
	"github.com/communalgrowth/docsub/internal/errors"
	"github.com/communalgrowth/docsub/internal/idparser"
	"github.com/communalgrowth/docsub/internal/metadata"
	"github.com/communalgrowth/docsub/internal/normalize"
	"github.com/communalgrowth/docsub/internal/store"
)

// Indexer receives documents created by a committed Subscribe.
type Indexer interface {
	IndexDocument(ctx context.Context, doc *domain.Document) error
}

// NoopIndexer discards everything.
type NoopIndexer struct{}

// IndexDocument does nothing.
func (NoopIndexer) IndexDocument(context.Context, *domain.Document) error { return nil }

// Engine runs subscribe, unsubscribe and forget requests. It keeps no state
// between calls and is safe for concurrent use.
type Engine struct {
	store    store.Store
	resolver metadata.Resolver
	indexer  Indexer
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	indexer Indexer
	timeout time.Duration
}

// WithIndexer pushes newly created documents to ix after commit.
func WithIndexer(ix Indexer) Option {
	return func(o *engineOptions) { o.indexer = ix }
}

// WithResolverTimeout bounds each lookup. The default is metadata.DefaultTimeout.
func WithResolverTimeout(d time.Duration) Option {
	return func(o *engineOptions) { o.timeout = d }
}

// New creates an engine. A nil resolver resolves nothing.
func New(st store.Store, resolver metadata.Resolver, logger *slog.Logger, opts ...Option) *Engine {
	o := engineOptions{indexer: NoopIndexer{}, timeout: metadata.DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if resolver == nil {
		resolver = metadata.Unavailable
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		store:    st,
		resolver: metadata.WithTimeout(resolver, o.timeout),
		indexer:  o.indexer,
		logger:   logger,
	}
}

// candidate is one distinct identifier of a Subscribe batch after the
// resolve phase. md is nil when the document already existed.
type candidate struct {
	id domain.Identifier
	md *metadata.Metadata
}

// Subscribe links sender to every document named by tokens, creating
// documents through the resolver where needed.
//
// Lookups run before the write transaction opens. Inside it every
// identifier is looked up again, so a document another message created in
// the meantime is reused rather than duplicated.
func (e *Engine) Subscribe(ctx context.Context, sender string, tokens []string) (*Report, error) {
	sender, err := checkSender(sender)
	if err != nil {
		return nil, err
	}
	log := e.logger.With("op", "subscribe", "sender", sender)

	base := &Report{}
	ids := e.classify(tokens, base, log)

	candidates, err := e.resolve(ctx, ids, base, log)
	if err != nil {
		return nil, err
	}

	var (
		report  *Report
		created []*domain.Document
	)
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		// Start over on every attempt; WithTx may retry.
		rep := *base
		created = created[:0]

		sub, err := ensureSubscriber(ctx, tx, sender, &rep)
		if err != nil {
			return err
		}

		for _, c := range candidates {
			doc, isNew, err := e.reconcile(ctx, tx, c, &rep, log)
			if err != nil {
				return err
			}
			if doc == nil {
				continue
			}
			if isNew {
				created = append(created, doc)
			}

			linked, err := tx.AddSubscription(ctx, sub, doc)
			if err != nil {
				return err
			}
			if linked {
				rep.Linked++
			} else {
				rep.AlreadyLinked++
			}
		}

		report = &rep
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeOf(err), "subscribe %s", sender)
	}

	for _, doc := range created {
		if err := e.indexer.IndexDocument(ctx, doc); err != nil {
			log.Warn("failed to index document", "document_id", doc.ID, "error", err)
		}
	}

	log.Info("subscribe processed", "report", report)
	return report, nil
}

// Unsubscribe removes the links between sender and the documents named by
// tokens. A sender left without subscriptions is deleted. No lookups are made.
func (e *Engine) Unsubscribe(ctx context.Context, sender string, tokens []string) (*Report, error) {
	sender, err := checkSender(sender)
	if err != nil {
		return nil, err
	}
	log := e.logger.With("op", "unsubscribe", "sender", sender)

	base := &Report{}
	ids := e.classify(tokens, base, log)

	var report *Report
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		rep := *base
		report = &rep

		sub, err := tx.FindSubscriber(ctx, sender)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		for _, id := range ids {
			doc, err := tx.FindDocument(ctx, id.Kind, id.Value)
			if errors.Is(err, store.ErrNotFound) {
				rep.Unknown++
				continue
			}
			if err != nil {
				return err
			}
			if !sub.Subscribed(doc.ID) {
				continue
			}
			removed, err := tx.RemoveSubscription(ctx, sub, doc)
			if err != nil {
				return err
			}
			if removed {
				rep.Unlinked++
			}
		}

		deleted, err := tx.DeleteSubscriberIfOrphan(ctx, sub)
		if err != nil {
			return err
		}
		rep.SubscriberDeleted = deleted
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeOf(err), "unsubscribe %s", sender)
	}

	log.Info("unsubscribe processed", "report", report)
	return report, nil
}

// Forget deletes sender and all of its subscriptions.
func (e *Engine) Forget(ctx context.Context, sender string) (*Report, error) {
	sender, err := checkSender(sender)
	if err != nil {
		return nil, err
	}
	log := e.logger.With("op", "forget", "sender", sender)

	var report *Report
	err = e.store.WithTx(ctx, func(tx store.Tx) error {
		report = &Report{}

		sub, err := tx.FindSubscriber(ctx, sender)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		edges := len(sub.DocumentIDs)
		if err := tx.DeleteSubscriber(ctx, sub); err != nil {
			return err
		}
		report.Unlinked = edges
		report.SubscriberDeleted = true
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeOf(err), "forget %s", sender)
	}

	log.Info("forget processed", "report", report)
	return report, nil
}

func checkSender(sender string) (string, error) {
	sender = normalize.Email(sender)
	if sender == "" {
		return "", errors.Validation("sender is required")
	}
	return sender, nil
}

// classify parses tokens and returns the distinct resolvable identifiers in
// order of first appearance.
func (e *Engine) classify(tokens []string, rep *Report, log *slog.Logger) []domain.Identifier {
	rep.Tokens = len(tokens)
	seen := make(map[domain.Identifier]bool, len(tokens))
	ids := make([]domain.Identifier, 0, len(tokens))

	for _, id := range idparser.ClassifyAll(tokens) {
		if !id.Kind.Resolvable() {
			rep.Titles++
			log.Debug("ignoring title", "token", id.Value)
			continue
		}
		if seen[id] {
			rep.Duplicates++
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// resolve looks up every identifier the store does not know yet. Failed
// lookups are logged and dropped.
func (e *Engine) resolve(ctx context.Context, ids []domain.Identifier, rep *Report, log *slog.Logger) ([]candidate, error) {
	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		_, err := e.store.FindDocument(ctx, id.Kind, id.Value)
		if err == nil {
			out = append(out, candidate{id: id})
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		res := metadata.Resolve(ctx, e.resolver, id)
		if !res.OK() {
			rep.Unresolved++
			log.Warn("could not resolve identifier", "kind", id.Kind, "value", id.Value, "error", res.Err)
			continue
		}
		rep.Resolved++
		out = append(out, candidate{id: id, md: res.Metadata})
	}
	return out, nil
}

// reconcile returns the document for c, creating it or attaching c's
// identifier to its ISBN sibling as needed. A nil document means the token
// is skipped.
func (e *Engine) reconcile(ctx context.Context, tx store.Tx, c candidate, rep *Report, log *slog.Logger) (*domain.Document, bool, error) {
	id := c.id

	doc, err := tx.FindDocument(ctx, id.Kind, id.Value)
	if err == nil {
		return doc, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}
	if c.md == nil {
		// Documents are never deleted, so this cannot happen short of
		// manual edits to the database.
		rep.Skipped++
		log.Warn("document vanished during processing", "kind", id.Kind, "value", id.Value)
		return nil, false, nil
	}

	sib, handled, err := e.attachToSibling(ctx, tx, id, c.md, rep, log)
	if err != nil || handled {
		return sib, false, err
	}

	fields := c.md.Fields()
	fields.Set(id.Kind, id.Value)

	doc, err = tx.CreateDocument(ctx, c.md.Title, fields, c.md.Authors)
	switch {
	case err == nil:
		rep.Created++
		log.Debug("created document", "document_id", doc.ID, "title", doc.Title)
		return doc, true, nil
	case errors.Is(err, store.ErrAlreadyExists):
		doc, err := refind(ctx, tx, append([]domain.Identifier{id}, fields.Identifiers()...))
		if err != nil {
			return nil, false, err
		}
		if doc == nil {
			rep.Skipped++
			log.Warn("document create conflicted and no match was found", "kind", id.Kind, "value", id.Value)
		}
		return doc, false, nil
	default:
		return nil, false, err
	}
}

// attachToSibling implements the ISBN dedup rule: when metadata for one
// ISBN kind names the other kind and a document already carries it, the
// requested ISBN is added to that document. handled is false when the rule
// does not apply; a handled call with a nil document skips the token.
func (e *Engine) attachToSibling(ctx context.Context, tx store.Tx, id domain.Identifier, md *metadata.Metadata, rep *Report, log *slog.Logger) (doc *domain.Document, handled bool, err error) {
	sibling, ok := id.Kind.Sibling()
	if !ok {
		return nil, false, nil
	}
	value := md.Fields().Get(sibling)
	if value == "" {
		return nil, false, nil
	}

	doc, err = tx.FindDocument(ctx, sibling, value)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	err = tx.AttachIdentifier(ctx, doc, id.Kind, id.Value)
	switch {
	case err == nil:
		rep.Attached++
		log.Debug("attached identifier to sibling", "document_id", doc.ID, "kind", id.Kind, "value", id.Value)
		return doc, true, nil
	case errors.Is(err, store.ErrAlreadyExists):
		found, err := refind(ctx, tx, []domain.Identifier{id})
		if err != nil {
			return nil, true, err
		}
		if found == nil {
			rep.Skipped++
			log.Warn("identifier attach conflicted and no match was found", "kind", id.Kind, "value", id.Value)
		}
		return found, true, nil
	case errors.Is(err, store.ErrConflict):
		rep.Skipped++
		log.Warn("sibling document already has a different identifier",
			"document_id", doc.ID, "kind", id.Kind, "want", id.Value, "have", doc.Identifier(id.Kind))
		return nil, true, nil
	default:
		return nil, true, err
	}
}

// ensureSubscriber finds or creates the subscriber for email.
func ensureSubscriber(ctx context.Context, tx store.Tx, email string, rep *Report) (*domain.Subscriber, error) {
	sub, err := tx.FindSubscriber(ctx, email)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	sub, err = tx.CreateSubscriber(ctx, email)
	if errors.Is(err, store.ErrAlreadyExists) {
		return tx.FindSubscriber(ctx, email)
	}
	if err != nil {
		return nil, err
	}
	rep.SubscriberCreated = true
	return sub, nil
}

// refind returns the first document carrying any of ids, or nil.
func refind(ctx context.Context, tx store.Tx, ids []domain.Identifier) (*domain.Document, error) {
	for _, id := range ids {
		doc, err := tx.FindDocument(ctx, id.Kind, id.Value)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}
