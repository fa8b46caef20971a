package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExistenceConstraintBlocksCommitWithoutRequiredProperty(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddExistence(labelPerson, propName)

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, labelPerson))

	err = e.Commit(context.Background(), tx)
	var cve *ConstraintViolationError
	require.True(t, errors.As(err, &cve))
	assert.Equal(t, ConstraintExistence, cve.Kind)
	assert.True(t, errors.Is(err, ErrConstraintViolation))
}

func TestExistenceConstraintAllowsCommitWhenPropertySet(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddExistence(labelPerson, propName)

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, labelPerson))
	require.NoError(t, e.SetVertexProperty(tx, v, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), tx))
}

func TestTypeConstraintRejectsWrongKind(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddType(labelPerson, propAge, KindInt)

	tx := e.Begin()
	v, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v, labelPerson))
	require.NoError(t, e.SetVertexProperty(tx, v, propAge, StringValue("not a number")))

	err = e.Commit(context.Background(), tx)
	var cve *ConstraintViolationError
	require.True(t, errors.As(err, &cve))
	assert.Equal(t, ConstraintType, cve.Kind)
}

func TestUniqueConstraintRejectsDuplicateValue(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddUnique(labelPerson, propName)

	t1 := e.Begin()
	v1, err := e.CreateVertex(t1)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t1, v1, labelPerson))
	require.NoError(t, e.SetVertexProperty(t1, v1, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t1))

	t2 := e.Begin()
	v2, err := e.CreateVertex(t2)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t2, v2, labelPerson))
	require.NoError(t, e.SetVertexProperty(t2, v2, propName, StringValue("ada")))

	err = e.Commit(context.Background(), t2)
	var cve *ConstraintViolationError
	require.True(t, errors.As(err, &cve))
	assert.Equal(t, ConstraintUnique, cve.Kind)
}

func TestUniqueConstraintRollsBackTentativeClaimOnLaterFailureInSameTransaction(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddUnique(labelPerson, propName)
	e.Constraints().AddExistence(labelPerson, propAge)

	tx := e.Begin()
	// v1 satisfies both constraints and claims "grace" in the unique index
	// before v2 is validated and fails existence, aborting the whole commit.
	v1, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v1, labelPerson))
	require.NoError(t, e.SetVertexProperty(tx, v1, propName, StringValue("grace")))
	require.NoError(t, e.SetVertexProperty(tx, v1, propAge, IntValue(10)))

	v2, err := e.CreateVertex(tx)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(tx, v2, labelPerson))
	require.NoError(t, e.SetVertexProperty(tx, v2, propName, StringValue("ada")))
	// v2 has no propAge set: existence constraint fails for v2.

	err = e.Commit(context.Background(), tx)
	require.Error(t, err)

	retry := e.Begin()
	v3, err := e.CreateVertex(retry)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(retry, v3, labelPerson))
	require.NoError(t, e.SetVertexProperty(retry, v3, propName, StringValue("grace")))
	require.NoError(t, e.SetVertexProperty(retry, v3, propAge, IntValue(1)))
	require.NoError(t, e.Commit(context.Background(), retry), "a rolled-back tentative unique claim from the failed transaction must not block a later, valid commit")
}

func TestUniqueConstraintReleasesClaimWhenOwningVertexIsDeleted(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddUnique(labelPerson, propName)

	t1 := e.Begin()
	v1, err := e.CreateVertex(t1)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t1, v1, labelPerson))
	require.NoError(t, e.SetVertexProperty(t1, v1, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t1))

	t2 := e.Begin()
	require.NoError(t, e.DeleteVertex(t2, v1))
	require.NoError(t, e.Commit(context.Background(), t2))

	t3 := e.Begin()
	v2, err := e.CreateVertex(t3)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t3, v2, labelPerson))
	require.NoError(t, e.SetVertexProperty(t3, v2, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t3), "deleting the prior owner must free its unique value for reuse")
}

func TestUniqueConstraintReleasesClaimWhenOwningVertexIsDetachDeleted(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddUnique(labelPerson, propName)

	t1 := e.Begin()
	v1, err := e.CreateVertex(t1)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t1, v1, labelPerson))
	require.NoError(t, e.SetVertexProperty(t1, v1, propName, StringValue("ada")))
	other, err := e.CreateVertex(t1)
	require.NoError(t, err)
	_, err = e.CreateEdge(t1, v1, other, 1)
	require.NoError(t, err)
	require.NoError(t, e.Commit(context.Background(), t1))

	t2 := e.Begin()
	require.NoError(t, e.DetachDeleteVertex(t2, v1))
	require.NoError(t, e.Commit(context.Background(), t2))

	t3 := e.Begin()
	v2, err := e.CreateVertex(t3)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t3, v2, labelPerson))
	require.NoError(t, e.SetVertexProperty(t3, v2, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t3), "detach-deleting the prior owner must free its unique value for reuse")
}

func TestUniqueConstraintReleasesClaimWhenValueChanges(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddUnique(labelPerson, propName)

	t1 := e.Begin()
	v1, err := e.CreateVertex(t1)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t1, v1, labelPerson))
	require.NoError(t, e.SetVertexProperty(t1, v1, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t1))

	t2 := e.Begin()
	require.NoError(t, e.SetVertexProperty(t2, v1, propName, StringValue("grace")))
	require.NoError(t, e.Commit(context.Background(), t2))

	t3 := e.Begin()
	v2, err := e.CreateVertex(t3)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t3, v2, labelPerson))
	require.NoError(t, e.SetVertexProperty(t3, v2, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t3), "changing the owner's value must free the old value for reuse")
}

func TestUniqueConstraintStillRejectsLiveOwnerValueUnchanged(t *testing.T) {
	e := newTestEngine()
	e.Constraints().AddUnique(labelPerson, propName)

	t1 := e.Begin()
	v1, err := e.CreateVertex(t1)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t1, v1, labelPerson))
	require.NoError(t, e.SetVertexProperty(t1, v1, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t1))

	// Setting the property back to the same value it already holds must
	// not release v1's own claim on it.
	t2 := e.Begin()
	require.NoError(t, e.SetVertexProperty(t2, v1, propName, StringValue("ada")))
	require.NoError(t, e.Commit(context.Background(), t2))

	t3 := e.Begin()
	v2, err := e.CreateVertex(t3)
	require.NoError(t, err)
	require.NoError(t, e.AddLabel(t3, v2, labelPerson))
	require.NoError(t, e.SetVertexProperty(t3, v2, propName, StringValue("ada")))

	err = e.Commit(context.Background(), t3)
	var cve *ConstraintViolationError
	require.True(t, errors.As(err, &cve), "v1 still live with the same value must keep blocking a second claimant")
}
