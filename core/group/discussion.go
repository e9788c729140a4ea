package group

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/gamification"
	"github.com/trezcool/selah/core/user"
)

// AssistantContextPosts is how many of the latest posts the assistant sees when replying.
const AssistantContextPosts = 20

// FallbackQuestions are used when no assistant is configured or it fails.
var FallbackQuestions = []string{
	"What does this passage reveal about God's character?",
	"What does it teach us about ourselves?",
	"Is there a promise to hold on to or a command to obey?",
	"How will you live this out this week?",
}

const fallbackReply = "The assistant is not available right now. Keep the conversation going: " +
	"what stood out to you in this passage?"

func (svc *service) discussionQuestions(ctx context.Context, ref bible.Reference, translation string) []string {
	if svc.assistant == nil {
		return append([]string(nil), FallbackQuestions...)
	}

	var text string
	if svc.passages != nil {
		if p, err := svc.passages.Passage(ctx, translation, ref.String()); err == nil {
			text = p.Text
		} else {
			svc.logger.Warn(fmt.Sprintf("fetching passage %s for discussion: %v", ref, err))
		}
	}

	questions, err := svc.assistant.DiscussionQuestions(ctx, ref.Human(), text)
	if err != nil || len(questions) == 0 {
		if err != nil {
			svc.logger.Error(fmt.Sprintf("generating discussion questions: %v", err), err)
		}
		return append([]string(nil), FallbackQuestions...)
	}
	return questions
}

func (svc *service) OpenDiscussion(ctx context.Context, usr user.User, groupID string, nd NewDiscussion) (Discussion, error) {
	if _, err := svc.member(ctx, groupID, usr.ID); err != nil {
		return Discussion{}, err
	}
	ref, err := bible.ParseReference(nd.Ref)
	if err != nil {
		return Discussion{}, core.NewValidationError(err, core.FieldError{Field: "ref", Error: err.Error()})
	}

	translation := nd.Translation
	if translation == "" {
		translation = usr.Translation
	}
	title := core.CleanString(nd.Title)
	if title == "" {
		title = ref.Human()
	}

	return svc.repo.CreateDiscussion(ctx, Discussion{
		ID:        uuid.New().String(),
		GroupID:   groupID,
		CreatedBy: usr.ID,
		Ref:       ref.String(),
		Title:     title,
		Questions: svc.discussionQuestions(ctx, ref, translation),
		CreatedAt: core.Now(),
	})
}

func (svc *service) Discussions(ctx context.Context, userID, groupID string) ([]Discussion, error) {
	if _, err := svc.member(ctx, groupID, userID); err != nil {
		return nil, err
	}
	return svc.repo.ListDiscussions(ctx, groupID)
}

func (svc *service) discussion(ctx context.Context, userID, id string) (Discussion, error) {
	d, err := svc.repo.GetDiscussion(ctx, id)
	if err != nil {
		return Discussion{}, err
	}
	if _, err := svc.member(ctx, d.GroupID, userID); err != nil {
		return Discussion{}, err
	}
	return d, nil
}

func (svc *service) Thread(ctx context.Context, userID, discussionID string) (Thread, error) {
	d, err := svc.discussion(ctx, userID, discussionID)
	if err != nil {
		return Thread{}, err
	}
	posts, err := svc.repo.ListPosts(ctx, d.ID)
	if err != nil {
		return Thread{}, errors.Wrap(err, "listing posts")
	}
	return Thread{Discussion: d, Posts: posts}, nil
}

func (svc *service) Reply(ctx context.Context, userID, discussionID string, nm NewMessage) (Post, error) {
	d, err := svc.discussion(ctx, userID, discussionID)
	if err != nil {
		return Post{}, err
	}
	p, err := svc.repo.CreatePost(ctx, Post{
		ID:           uuid.New().String(),
		DiscussionID: d.ID,
		UserID:       userID,
		Body:         core.CleanString(nm.Body),
		CreatedAt:    core.Now(),
	})
	if err != nil {
		return Post{}, errors.Wrap(err, "creating post")
	}

	if _, err := svc.rewarder.Reward(ctx, userID, gamification.KindDiscussionPost, p.ID); err != nil {
		svc.logger.Error(fmt.Sprintf("rewarding discussion post: %v", err), err)
	}
	return p, nil
}

// AskAssistant appends an assistant reply to the thread, given its latest posts.
func (svc *service) AskAssistant(ctx context.Context, userID, discussionID string) (Post, error) {
	d, err := svc.discussion(ctx, userID, discussionID)
	if err != nil {
		return Post{}, err
	}
	posts, err := svc.repo.ListPosts(ctx, d.ID)
	if err != nil {
		return Post{}, errors.Wrap(err, "listing posts")
	}
	if len(posts) > AssistantContextPosts {
		posts = posts[len(posts)-AssistantContextPosts:]
	}

	body := fallbackReply
	if svc.assistant != nil {
		display := d.Ref
		if ref, err := bible.ParseReference(d.Ref); err == nil {
			display = ref.Human()
		}
		reply, err := svc.assistant.Reply(ctx, display, posts)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("asking assistant: %v", err), err)
		} else if reply != "" {
			body = reply
		}
	}

	return svc.repo.CreatePost(ctx, Post{
		ID:           uuid.New().String(),
		DiscussionID: d.ID,
		IsAssistant:  true,
		Body:         body,
		CreatedAt:    core.Now(),
	})
}
