package sqlinline

// Every job query returning rows selects the same column list in the same
// order; repo.scanJob depends on it.

const QInsertJob = `--sql 0059685f-f9ea-474b-a959-a3727c10cfb9
insert into jobs (id, kind, org_id, parent_id, status, input)
values ($1, $2, $3, $4, 'pending', $5)
returning created_at, updated_at;
`

const QClaimNextJob = `--sql 7d011f01-8e8a-454b-97d2-f477fc83b455
with next_job as (
    select id
    from jobs
    where status = 'pending' and kind = $1
    order by created_at asc, id asc
    for update skip locked
    limit 1
)
update jobs j
set status = 'in_progress', updated_at = now()
from next_job
where j.id = next_job.id and j.status = 'pending'
returning j.id::text, j.kind, j.org_id, j.parent_id, j.status, j.input, j.result, j.error, j.external_ref, j.created_at, j.updated_at, j.completed_at;
`

const QSetJobExternalRef = `--sql 242b29bd-7685-4e46-84bf-f09dd5aba929
update jobs
set external_ref = $2, updated_at = now()
where id = $1 and status = 'in_progress';
`

const QCompleteJob = `--sql a18747c1-db24-449c-b78e-7294e72af26c
update jobs
set status = 'completed', result = $2, error = '', updated_at = now(), completed_at = now()
where id = $1 and status = 'in_progress'
returning id::text, kind, org_id, parent_id, status, input, result, error, external_ref, created_at, updated_at, completed_at;
`

const QFailJob = `--sql 361901f1-8509-4a47-862a-f9ee164d05ba
update jobs
set status = 'failed', error = $2, updated_at = now(), completed_at = now()
where id = $1 and status = 'in_progress'
returning id::text, kind, org_id, parent_id, status, input, result, error, external_ref, created_at, updated_at, completed_at;
`

const QSelectJobStatus = `--sql e7d489a9-d6ad-49b4-a478-d1859259afd7
select status
from jobs
where id = $1;
`

const QSelectJobByID = `--sql a56a50fa-6f70-4a7f-911d-72501303395c
select id::text, kind, org_id, parent_id, status, input, result, error, external_ref, created_at, updated_at, completed_at
from jobs
where id = $1;
`

const QSelectJobByExternalRef = `--sql a0e46fd4-51fe-42f3-a98f-12c825530fb0
select id::text, kind, org_id, parent_id, status, input, result, error, external_ref, created_at, updated_at, completed_at
from jobs
where external_ref = $1
order by created_at desc
limit 1;
`

const QListJobs = `--sql 15bd64d5-5242-4148-ae16-3bfcfd1337c9
select id::text, kind, org_id, parent_id, status, input, result, error, external_ref, created_at, updated_at, completed_at
from jobs
where ($6 or org_id = $1)
  and ($2 = '' or parent_id = $2)
  and ($3 = '' or kind = $3)
  and ($4 = '' or status = $4)
order by created_at asc, id asc
limit $5;
`

const QResetStaleJobs = `--sql f9dca144-cc46-455f-aa9f-c18d15486c19
update jobs
set status = 'pending', error = $2, external_ref = '', updated_at = now()
where status = 'in_progress' and updated_at < $1
returning id::text, kind, org_id, parent_id, status, input, result, error, external_ref, created_at, updated_at, completed_at;
`
