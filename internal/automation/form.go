package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/qs3c/apply_go_server/internal/model"
)

// fillFields 填写当前页面上存在的资料字段
func (r *run) fillFields(ctx context.Context) (int, error) {
	filled := 0
	for _, f := range r.variant.Selectors.Fields {
		value := r.profile.Value(f.Field)
		if value == "" {
			continue
		}

		ok, err := r.exists(ctx, f.Selector)
		if err != nil {
			return filled, err
		}
		if !ok {
			continue
		}

		if err := r.do(ctx, "fill "+f.Field, func(ctx context.Context) error {
			return r.d.Fill(ctx, f.Selector, value)
		}); err != nil {
			return filled, err
		}
		filled++
	}
	return filled, nil
}

func (r *run) formFill(ctx context.Context) error {
	sel := r.variant.Selectors

	filled, err := r.fillFields(ctx)
	if err != nil {
		return err
	}
	r.rec.Log(ctx, model.LevelInfo, r.state, fmt.Sprintf("filled %d profile fields", filled), "")

	resume := r.profile.ResumePath
	if resume == "" {
		return halt(model.StatusFailed, model.ReasonStructural, "profile has no résumé")
	}
	if _, err := os.Stat(resume); err != nil {
		return halt(model.StatusFailed, model.ReasonStructural, "résumé file not found: %s", resume)
	}

	ok, err := r.exists(ctx, sel.Resume)
	if err != nil {
		return err
	}
	if ok {
		if err := r.do(ctx, "attach résumé", func(ctx context.Context) error {
			return r.d.SetFiles(ctx, sel.Resume, resume)
		}); err != nil {
			return err
		}
		r.rec.Log(ctx, model.LevelInfo, r.state, "attached résumé", "")
	} else {
		r.rec.Log(ctx, model.LevelWarning, r.state, "no résumé upload field found", "")
	}

	return r.attachCoverLetter(ctx)
}

// attachCoverLetter 只有开启自动附加时才上传
func (r *run) attachCoverLetter(ctx context.Context) error {
	if r.e.documents == nil {
		return nil
	}

	letter, autoAttach, err := r.e.documents.CoverLetter(ctx, r.job.ApplicationID)
	if err != nil {
		r.rec.Log(ctx, model.LevelWarning, r.state, "cover letter unavailable: "+err.Error(), "")
		return nil
	}
	if !autoAttach {
		r.rec.Log(ctx, model.LevelInfo, r.state, "cover letter auto-attach disabled", "")
		return nil
	}
	if letter == nil || letter.Path == "" {
		return nil
	}

	sel := r.variant.Selectors.CoverLetter
	ok, err := r.exists(ctx, sel)
	if err != nil {
		return err
	}
	if !ok {
		r.rec.Log(ctx, model.LevelInfo, r.state, "no cover letter field on this form", "")
		return nil
	}

	if err := r.do(ctx, "attach cover letter", func(ctx context.Context) error {
		return r.d.SetFiles(ctx, sel, letter.Path)
	}); err != nil {
		return err
	}
	r.rec.Log(ctx, model.LevelInfo, r.state, "attached cover letter", "")
	return nil
}

// questionMatching 逐页回答问题直到出现审核页，从不点击提交
func (r *run) questionMatching(ctx context.Context) error {
	sel := r.variant.Selectors

	answers, err := r.e.answers.StandardAnswers(ctx)
	if err != nil {
		return &StepError{State: r.state, Op: "load standard answers", Err: err}
	}

	for page := 0; ; page++ {
		if err := r.answerQuestions(ctx, answers); err != nil {
			return err
		}

		ok, err := r.exists(ctx, sel.Review)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		if page >= r.e.opts.MaxReviewAdvances {
			return &StepError{State: r.state, Op: "advance",
				Err: fmt.Errorf("review page not reached after %d pages", page+1)}
		}

		ok, err = r.exists(ctx, sel.Next)
		if err != nil {
			return err
		}
		if !ok {
			return &StepError{State: r.state, Op: "advance",
				Err: errors.New("no next button and no review page")}
		}
		if err := r.do(ctx, "next page", func(ctx context.Context) error {
			return r.d.Click(ctx, sel.Next)
		}); err != nil {
			return err
		}
		r.rec.Log(ctx, model.LevelInfo, r.state, fmt.Sprintf("advanced to page %d", page+2), "")

		// 后续页面可能继续要求填写资料
		if _, err := r.fillFields(ctx); err != nil {
			return err
		}
	}
}

func (r *run) answerQuestions(ctx context.Context, answers []Answer) error {
	sel := r.variant.Selectors
	if sel.QuestionBlock == "" {
		return nil
	}

	questions, err := doVal(ctx, r, "list questions", func(ctx context.Context) ([]Question, error) {
		return r.d.Questions(ctx, sel.QuestionBlock, sel.QuestionLabel, sel.QuestionInput)
	})
	if err != nil {
		return err
	}

	for _, q := range questions {
		label := strings.TrimSpace(q.Label)
		if label == "" || q.Input == "" {
			continue
		}

		value := r.e.opts.UnknownQuestionFallback
		match, ok := BestMatch(label, answers, r.e.opts.MatchThreshold)
		switch {
		case ok:
			value = match.Answer.Answer
			r.rec.Log(ctx, model.LevelInfo, r.state,
				fmt.Sprintf("answered %q with standard answer #%d (score %.2f)", label, match.Answer.ID, match.Score), "")
		case value != "":
			r.rec.Log(ctx, model.LevelWarning, r.state,
				fmt.Sprintf("no standard answer for %q, used fallback", label), "")
		default:
			return &UnknownQuestionError{Question: label}
		}

		input := q.Input
		if err := r.do(ctx, "answer question", func(ctx context.Context) error {
			return r.d.Fill(ctx, input, value)
		}); err != nil {
			return err
		}
	}
	return nil
}
