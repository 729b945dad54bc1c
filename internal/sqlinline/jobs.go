package sqlinline

const QPing = `--sql 3c1f9a2e-8b4d-4f1a-9c3e-2d7b5e8a1f40
select 1;
`

const QInsertJob = `--sql 7e2d4b91-5a3c-4e8f-b1d2-9c6a0f3e5b72
insert into jobs (id, user_id, type, status, progress, current_step, input_data, retry_count, max_retries)
values ($1, $2, $3, 'pending', 0, $4, $5, 0, $6);
`

const QSelectJob = `--sql 19f3c8d4-2e6b-4a7d-8f5c-b0e1a9d2c384
select id, user_id, type, status, progress, current_step, input_data, result_data, error_message, retry_count, max_retries, created_at, updated_at, started_at, completed_at
from jobs
where id = $1;
`

const QUpdateJobProgress = `--sql 4b8a1e5f-9d2c-4c6e-a3b7-5f0d8c1e2a96
update jobs
set progress = $2,
    current_step = coalesce(nullif($3, ''), current_step),
    status = case when $4 then 'processing' else status end,
    started_at = case when $4 and started_at is null then now() else started_at end,
    updated_at = now()
where id = $1;
`

const QCompleteJob = `--sql 8d5c2f7a-1b9e-4d3a-b6f0-7c4e9a2d5b18
update jobs
set status = 'completed',
    progress = 100,
    result_data = $2,
    completed_at = now(),
    updated_at = now()
where id = $1;
`

const QFailJob = `--sql 2a7e9c4b-6f1d-4b8a-9e5c-0d3f7b2a8c61
update jobs
set status = 'failed',
    error_message = $2,
    retry_count = $3,
    completed_at = now(),
    updated_at = now()
where id = $1;
`

const QRequeueJob = `--sql 6c3b8f2d-4a7e-4f9c-8b1a-e5d0c9f4a237
update jobs
set status = 'pending',
    progress = 0,
    error_message = $2,
    retry_count = $3,
    current_step = $4,
    started_at = null,
    updated_at = now()
where id = $1;
`

const QCancelJob = `--sql 9f4d7a1c-8e2b-4c5f-a0d3-b6c1e8f5d749
update jobs
set status = 'cancelled',
    completed_at = now(),
    updated_at = now()
where id = $1;
`

const QSelectPendingJobs = `--sql 5e1c9b3f-7d4a-4e2c-b8f6-a0d5c2e7b914
select id, user_id, type, status, progress, current_step, input_data, result_data, error_message, retry_count, max_retries, created_at, updated_at, started_at, completed_at
from jobs
where status = 'pending'
  and ($1 = '' or user_id = $1)
  and ($2 = '' or type = $2)
order by created_at asc
limit $3;
`

const QSelectJobs = `--sql 0b6f2d8a-3c9e-4a1b-9d7f-c4e8a5b0d326
select id, user_id, type, status, progress, current_step, input_data, result_data, error_message, retry_count, max_retries, created_at, updated_at, started_at, completed_at
from jobs
where ($1 = '' or user_id = $1)
  and ($2 = '' or type = $2)
  and ($3 = '' or status = $3)
order by created_at desc
limit $4 offset $5;
`

const QCountJobsByStatus = `--sql d8a3f5c1-0e7b-4d9a-8c2f-1b6e4a9d0c58
select count(*),
       count(*) filter (where status = 'pending'),
       count(*) filter (where status = 'processing'),
       count(*) filter (where status = 'completed'),
       count(*) filter (where status = 'failed'),
       count(*) filter (where status = 'cancelled')
from jobs
where ($1 = '' or user_id = $1);
`

const QCountJobsByTypeStatus = `--sql a1c5e8b2-9f4d-4b7c-ad0e-3f2c6d8b5a91
select type,
       count(*),
       count(*) filter (where status = 'pending'),
       count(*) filter (where status = 'processing'),
       count(*) filter (where status = 'completed'),
       count(*) filter (where status = 'failed'),
       count(*) filter (where status = 'cancelled')
from jobs
group by type
order by type;
`

const QAvgProcessingSeconds = `--sql e7b2d4f9-6a1c-4e8d-b5a3-8c0f2e9d4b76
select coalesce(avg(extract(epoch from (completed_at - started_at))), 0)
from jobs
where status = 'completed'
  and started_at is not null
  and completed_at is not null;
`

const QOldestPendingAge = `--sql 3f8e1a6d-2b5c-4f0a-9e7d-c1b4a8f2e053
select coalesce(extract(epoch from (now() - min(created_at))), 0)
from jobs
where status = 'pending';
`

const QWindowCounts = `--sql b4d9c2e7-5f8a-4c1d-ae3b-0d6f9c4e7a28
select count(*) filter (where created_at >= $1),
       count(*) filter (where status = 'completed' and completed_at >= $1),
       count(*) filter (where status = 'failed' and completed_at >= $1),
       coalesce(sum(retry_count) filter (where updated_at >= $1), 0)
from jobs;
`

const QPeakProcessingSeconds = `--sql f2a6e9d3-8c1b-4a5e-bd7f-4e0c8a3d6b95
select coalesce(max(extract(epoch from (completed_at - started_at))), 0)
from jobs
where status = 'completed'
  and started_at is not null
  and completed_at >= $1;
`

const QStuckJobs = `--sql c9e4b7f1-0d3a-4e6c-8f2b-a5d1c7e9f063
select id, user_id, type, status, progress, current_step, input_data, result_data, error_message, retry_count, max_retries, created_at, updated_at, started_at, completed_at
from jobs
where status = 'processing'
  and updated_at < $1
order by updated_at asc;
`

const QDeleteOldJobs = `--sql 1d7a4c8e-3b6f-4d2a-9c5e-f0b8d4a1c672
delete from jobs
where status in ('completed', 'failed', 'cancelled')
  and completed_at is not null
  and completed_at < $1;
`
